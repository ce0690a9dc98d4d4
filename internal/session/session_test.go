package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/shuichiro-makigaki/mendeley-cli/internal/auth"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/config"
	apperrors "github.com/shuichiro-makigaki/mendeley-cli/internal/errors"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/logging"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/state"
)

func testConfig() *config.Config {
	return &config.Config{
		ClientID:     "1234",
		ClientSecret: "s3cret",
		RedirectURI:  "http://localhost:8888/callback",
		AuthURL:      "http://invalid.example/authorize",
		TokenURL:     "http://invalid.example/token",
		LoginTimeout: time.Minute,
	}
}

func encodeToken(t *testing.T, tok *oauth2.Token) string {
	t.Helper()

	encoded, err := auth.EncodeToken(tok)
	require.NoError(t, err)

	return encoded
}

func TestNew_NoTokenAnywhere_LoginRequired(t *testing.T) {
	_, err := New(context.Background(), testConfig(), nil, logging.NewLogger(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLoginRequired)
}

func TestNew_MalformedEnvToken(t *testing.T) {
	cfg := testConfig()
	cfg.TokenBase64 = "not base64 at all"

	_, err := New(context.Background(), cfg, nil, logging.NewLogger(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestNew_EncodedTokenYieldsAuthenticatedCalls(t *testing.T) {
	// Round-trip property: a token encoded by the login flow and decoded
	// by the restore flow must support at least one authenticated call.
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer api.Close()

	cfg := testConfig()
	cfg.TokenBase64 = encodeToken(t, &oauth2.Token{
		AccessToken: "tok-abc",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	})

	s, err := New(context.Background(), cfg, nil, logging.NewLogger(""))
	require.NoError(t, err)

	resp, err := s.Client().Get(api.URL + "/documents")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_EnvTokenTakesPrecedenceOverStore(t *testing.T) {
	store, err := state.Open(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SetToken(&oauth2.Token{AccessToken: "from-store", Expiry: time.Now().Add(time.Hour)}))

	cfg := testConfig()
	cfg.TokenBase64 = encodeToken(t, &oauth2.Token{AccessToken: "from-env", Expiry: time.Now().Add(time.Hour)})

	s, err := New(context.Background(), cfg, store, logging.NewLogger(""))
	require.NoError(t, err)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok.AccessToken)
}

func TestNew_FallsBackToStore(t *testing.T) {
	store, err := state.Open(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SetToken(&oauth2.Token{AccessToken: "from-store", Expiry: time.Now().Add(time.Hour)}))

	s, err := New(context.Background(), testConfig(), store, logging.NewLogger(""))
	require.NoError(t, err)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "from-store", tok.AccessToken)
}

func TestNew_ImplicitLoginWhenUsernameConfigured(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://localhost:8888/callback#access_token=tok-implicit&token_type=bearer&expires_in=3600")
		w.WriteHeader(http.StatusFound)
	}))
	defer provider.Close()

	cfg := testConfig()
	cfg.AuthURL = provider.URL + "/oauth/authorize"
	cfg.Username = "user@example.com"
	cfg.Password = "hunter2"

	s, err := New(context.Background(), cfg, nil, logging.NewLogger(""))
	require.NoError(t, err)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-implicit", tok.AccessToken)
}

func TestSession_RefreshRotationIsPersisted(t *testing.T) {
	// Token endpoint that exchanges any refresh token for a fresh pair.
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "ref-old", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-new","refresh_token":"ref-new","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	store, err := state.Open(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	defer store.Close()

	cfg := testConfig()
	cfg.TokenURL = tokenSrv.URL + "/oauth/token"
	// Expired access token forces a refresh on first use.
	cfg.TokenBase64 = encodeToken(t, &oauth2.Token{
		AccessToken:  "tok-old",
		RefreshToken: "ref-old",
		Expiry:       time.Now().Add(-time.Hour),
	})

	s, err := New(context.Background(), cfg, store, logging.NewLogger(""))
	require.NoError(t, err)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-new", tok.AccessToken)

	persisted, err := store.Token()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "tok-new", persisted.AccessToken)
	assert.Equal(t, "ref-new", persisted.RefreshToken)
}
