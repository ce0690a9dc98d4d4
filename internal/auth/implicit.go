package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// implicitLoginTimeout bounds the credential POST to the provider.
const implicitLoginTimeout = 30 * time.Second

// ImplicitLogin obtains a token via the implicit grant: it POSTs the
// resource-owner credentials to the authorization URL and reads the token
// out of the fragment of the redirect the provider answers with. No
// refresh token is issued on this flow.
func ImplicitLogin(ctx context.Context, cfg *oauth2.Config, username, password string) (*oauth2.Token, error) {
	loginURL, err := url.Parse(cfg.Endpoint.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("parsing authorization URL: %w", err)
	}

	query := loginURL.Query()
	query.Set("client_id", cfg.ClientID)
	query.Set("redirect_uri", cfg.RedirectURL)
	query.Set("response_type", "token")
	query.Set("scope", strings.Join(cfg.Scopes, " "))
	loginURL.RawQuery = query.Encode()

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// The token arrives in the redirect Location; the redirect itself
	// must not be followed.
	client := &http.Client{
		Timeout: implicitLoginTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending login request: %w", err)
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("login failed: provider returned status %d without a redirect (check username/password)", resp.StatusCode)
	}

	return tokenFromRedirect(location)
}

// tokenFromRedirect parses an implicit-grant redirect URL whose fragment
// carries access_token, token_type and expires_in.
func tokenFromRedirect(location string) (*oauth2.Token, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect location: %w", err)
	}

	params, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect fragment: %w", err)
	}

	if errCode := params.Get("error"); errCode != "" {
		desc := params.Get("error_description")
		if desc == "" {
			desc = errCode
		}
		return nil, fmt.Errorf("login rejected by provider: %s", desc)
	}

	accessToken := params.Get("access_token")
	if accessToken == "" {
		return nil, fmt.Errorf("redirect location carries no access token")
	}

	tok := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   params.Get("token_type"),
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if expiresIn := params.Get("expires_in"); expiresIn != "" {
		secs, err := strconv.Atoi(expiresIn)
		if err == nil {
			tok.Expiry = time.Now().Add(time.Duration(secs) * time.Second)
		}
	}

	return tok, nil
}
