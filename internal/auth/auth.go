// Package auth establishes Mendeley OAuth2 sessions: the interactive
// authorization-code flow with a local browser callback, the implicit
// grant flow with resource-owner credentials, and the base64 token codec
// used to carry tokens between CLI invocations.
package auth

import (
	"golang.org/x/oauth2"
)

// Credentials is the OAuth2 client configuration, built once from the
// environment at process start and passed explicitly. ClientSecret is
// empty for the implicit flow; Username/Password are empty for the
// authorization-code flow.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Username     string
	Password     string
}

// OAuthConfig builds the oauth2 configuration for the Mendeley provider.
// authURL/tokenURL point at the production endpoints outside of tests.
func OAuthConfig(creds Credentials, authURL, tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       []string{"all"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}
