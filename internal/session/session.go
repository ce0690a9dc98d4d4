// Package session turns configuration into an authenticated HTTP client.
// A Session lives for one CLI invocation; the access token may be
// silently refreshed by the underlying oauth2 transport during any call.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/shuichiro-makigaki/mendeley-cli/internal/auth"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/config"
	apperrors "github.com/shuichiro-makigaki/mendeley-cli/internal/errors"
)

// TokenStore is the subset of the state store a Session writes rotated
// tokens back to. Nil disables persistence.
type TokenStore interface {
	Token() (*oauth2.Token, error)
	SetToken(tok *oauth2.Token) error
}

// Session carries a live token source bound to the configured OAuth2
// client. All API calls flow through Client().
type Session struct {
	source oauth2.TokenSource
	client *http.Client
}

// New restores or establishes a session. The token is resolved in order:
// the explicit MENDELEY_OAUTH2_TOKEN_BASE64 value, then the token store
// (when configured), then an implicit-grant login (when a username is
// configured). With none of the three available the session cannot be
// built and ErrLoginRequired is returned.
//
// The token is not validated here; a stale or revoked token surfaces as
// an authentication failure on the first API call.
func New(ctx context.Context, cfg *config.Config, store TokenStore, logger *slog.Logger) (*Session, error) {
	creds := auth.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Username:     cfg.Username,
		Password:     cfg.Password,
	}
	oauthCfg := auth.OAuthConfig(creds, cfg.AuthURL, cfg.TokenURL)

	tok, err := resolveToken(ctx, cfg, oauthCfg, store, logger)
	if err != nil {
		return nil, err
	}

	var source oauth2.TokenSource = oauthCfg.TokenSource(ctx, tok)
	if store != nil {
		source = &persistingSource{inner: source, store: store, logger: logger, last: tok.AccessToken}
	}

	return &Session{
		source: source,
		client: oauth2.NewClient(ctx, source),
	}, nil
}

func resolveToken(ctx context.Context, cfg *config.Config, oauthCfg *oauth2.Config, store TokenStore, logger *slog.Logger) (*oauth2.Token, error) {
	if cfg.TokenBase64 != "" {
		tok, err := auth.DecodeToken(cfg.TokenBase64)
		if err != nil {
			return nil, fmt.Errorf("MENDELEY_OAUTH2_TOKEN_BASE64: %w", err)
		}
		logger.Debug("session restored from environment token")

		return tok, nil
	}

	if store != nil {
		tok, err := store.Token()
		if err != nil {
			return nil, fmt.Errorf("reading token store: %w", err)
		}
		if tok != nil {
			logger.Debug("session restored from token store")
			return tok, nil
		}
	}

	if cfg.Username != "" {
		logger.Debug("logging in with the implicit grant flow", "username", cfg.Username)

		tok, err := auth.ImplicitLogin(ctx, oauthCfg, cfg.Username, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("implicit login: %w", err)
		}

		return tok, nil
	}

	return nil, apperrors.ErrLoginRequired
}

// Client returns the HTTP client that attaches (and transparently
// refreshes) the bearer token.
func (s *Session) Client() *http.Client {
	return s.client
}

// Token returns the current token, refreshing it if expired.
func (s *Session) Token() (*oauth2.Token, error) {
	tok, err := s.source.Token()
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	return tok, nil
}

// persistingSource wraps a TokenSource and writes the token back to the
// store whenever the refresh transport rotated it, so the next invocation
// starts from the fresh pair instead of the stale one.
type persistingSource struct {
	mu     sync.Mutex
	inner  oauth2.TokenSource
	store  TokenStore
	logger *slog.Logger
	last   string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.inner.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := p.store.SetToken(tok); err != nil {
			// Persistence is best-effort; the in-process token stays valid.
			p.logger.Warn("failed to persist refreshed token", "error", err)
		} else {
			p.logger.Debug("persisted refreshed token")
		}
	}

	return tok, nil
}
