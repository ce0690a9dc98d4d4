package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shuichiro-makigaki/mendeley-cli/internal/errors"
)

// freeLocalAddr reserves a listenable localhost address for the callback
// server by binding port 0 and releasing it again.
func freeLocalAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	return addr
}

// fakeTokenEndpoint serves POST /oauth/token, asserting the submitted code.
func fakeTokenEndpoint(t *testing.T, wantCode string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, wantCode, r.PostForm.Get("code"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-abc","refresh_token":"ref-xyz","token_type":"Bearer","expires_in":3600}`)
	}))
}

// browseCallback simulates the user completing the provider flow: it
// parses the announced authorization URL and hits the redirect URI with a
// code and the same state.
func browseCallback(t *testing.T, authURL, code string) {
	t.Helper()

	u, err := url.Parse(authURL)
	require.NoError(t, err)

	redirect := u.Query().Get("redirect_uri")
	state := u.Query().Get("state")
	require.NotEmpty(t, redirect)
	require.NotEmpty(t, state)

	resp, err := http.Get(redirect + "?code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInteractiveLogin_Success(t *testing.T) {
	tokenSrv := fakeTokenEndpoint(t, "code-123")
	defer tokenSrv.Close()

	addr := freeLocalAddr(t)
	creds := Credentials{
		ClientID:     "1234",
		ClientSecret: "s3cret",
		RedirectURI:  "http://" + addr + "/callback",
	}
	cfg := OAuthConfig(creds, tokenSrv.URL+"/oauth/authorize", tokenSrv.URL+"/oauth/token")

	openURL := func(authURL string) error {
		go browseCallback(t, authURL, "code-123")
		return nil
	}

	var announced string
	tok, err := InteractiveLogin(context.Background(), cfg, 10*time.Second, openURL, func(u string) { announced = u })
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok.AccessToken)
	assert.Equal(t, "ref-xyz", tok.RefreshToken)
	assert.Contains(t, announced, "state=")
	assert.Contains(t, announced, "response_type=code")
}

func TestInteractiveLogin_Timeout(t *testing.T) {
	addr := freeLocalAddr(t)
	creds := Credentials{ClientID: "1234", ClientSecret: "s3cret", RedirectURI: "http://" + addr + "/callback"}
	cfg := OAuthConfig(creds, "http://invalid.example/authorize", "http://invalid.example/token")

	start := time.Now()
	_, err := InteractiveLogin(context.Background(), cfg, 100*time.Millisecond, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLoginTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestInteractiveLogin_ContextCancelled(t *testing.T) {
	addr := freeLocalAddr(t)
	creds := Credentials{ClientID: "1234", ClientSecret: "s3cret", RedirectURI: "http://" + addr + "/callback"}
	cfg := OAuthConfig(creds, "http://invalid.example/authorize", "http://invalid.example/token")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := InteractiveLogin(ctx, cfg, time.Minute, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInteractiveLogin_StateMismatch(t *testing.T) {
	addr := freeLocalAddr(t)
	creds := Credentials{ClientID: "1234", ClientSecret: "s3cret", RedirectURI: "http://" + addr + "/callback"}
	cfg := OAuthConfig(creds, "http://invalid.example/authorize", "http://invalid.example/token")

	openURL := func(authURL string) error {
		go func() {
			u, err := url.Parse(authURL)
			if err != nil {
				return
			}
			redirect := u.Query().Get("redirect_uri")
			resp, err := http.Get(redirect + "?code=code-123&state=forged")
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	_, err := InteractiveLogin(context.Background(), cfg, 10*time.Second, openURL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStateMismatch)
}

func TestInteractiveLogin_ProviderDenied(t *testing.T) {
	addr := freeLocalAddr(t)
	creds := Credentials{ClientID: "1234", ClientSecret: "s3cret", RedirectURI: "http://" + addr + "/callback"}
	cfg := OAuthConfig(creds, "http://invalid.example/authorize", "http://invalid.example/token")

	openURL := func(authURL string) error {
		go func() {
			u, err := url.Parse(authURL)
			if err != nil {
				return
			}
			redirect := u.Query().Get("redirect_uri")
			resp, err := http.Get(redirect + "?error=access_denied&error_description=" + url.QueryEscape("User denied access"))
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	_, err := InteractiveLogin(context.Background(), cfg, 10*time.Second, openURL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User denied access")
}

func TestInteractiveLogin_RedirectURIWithoutPort(t *testing.T) {
	creds := Credentials{ClientID: "1234", ClientSecret: "s3cret", RedirectURI: "http://localhost/callback"}
	cfg := OAuthConfig(creds, "http://invalid.example/authorize", "http://invalid.example/token")

	_, err := InteractiveLogin(context.Background(), cfg, time.Second, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explicit port")
}

func TestRandomState_Unique(t *testing.T) {
	a, err := randomState()
	require.NoError(t, err)
	b, err := randomState()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.False(t, strings.ContainsAny(a, " \t\n"))
}
