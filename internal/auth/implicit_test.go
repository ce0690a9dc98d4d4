package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func implicitTestCreds() Credentials {
	return Credentials{
		ClientID:    "1234",
		RedirectURI: "http://localhost:8888/callback",
		Username:    "user@example.com",
		Password:    "hunter2",
	}
}

func TestImplicitLogin_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "token", r.URL.Query().Get("response_type"))
		assert.Equal(t, "1234", r.URL.Query().Get("client_id"))
		assert.Equal(t, "all", r.URL.Query().Get("scope"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "user@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "hunter2", r.PostForm.Get("password"))

		w.Header().Set("Location", "http://localhost:8888/callback#access_token=tok-abc&token_type=bearer&expires_in=3600")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	creds := implicitTestCreds()
	cfg := OAuthConfig(creds, srv.URL+"/oauth/authorize", srv.URL+"/oauth/token")

	tok, err := ImplicitLogin(context.Background(), cfg, creds.Username, creds.Password)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok.AccessToken)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)
	assert.Empty(t, tok.RefreshToken, "implicit grant issues no refresh token")
}

func TestImplicitLogin_BadCredentials_NoRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := implicitTestCreds()
	cfg := OAuthConfig(creds, srv.URL+"/oauth/authorize", srv.URL+"/oauth/token")

	_, err := ImplicitLogin(context.Background(), cfg, creds.Username, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestImplicitLogin_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://localhost:8888/callback#error=access_denied&error_description=Invalid+credentials")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	creds := implicitTestCreds()
	cfg := OAuthConfig(creds, srv.URL+"/oauth/authorize", srv.URL+"/oauth/token")

	_, err := ImplicitLogin(context.Background(), cfg, creds.Username, creds.Password)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestTokenFromRedirect_NoToken(t *testing.T) {
	_, err := tokenFromRedirect("http://localhost:8888/callback#state=xyz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access token")
}

func TestTokenFromRedirect_DefaultsTokenType(t *testing.T) {
	tok, err := tokenFromRedirect("http://localhost:8888/callback#access_token=tok-abc")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
}
