package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/shuichiro-makigaki/mendeley-cli/internal/errors"
)

// callbackShutdownTimeout bounds the listener shutdown after the single
// callback request has been served (or the wait gave up).
const callbackShutdownTimeout = 5 * time.Second

// callbackResult is what the browser redirect carried.
type callbackResult struct {
	code     string
	state    string
	errCode  string
	errDescr string
}

// InteractiveLogin runs the authorization-code flow: it starts a local
// listener on the redirect URI's host:port, directs the user's browser to
// the provider's authorization URL, waits for exactly one callback
// request (bounded by timeout), verifies the state parameter and
// exchanges the code for a token.
//
// openURL is invoked with the authorization URL; pass OpenBrowser for the
// real thing or nil to only announce the URL. announce receives the URL
// for display regardless (may be nil).
func InteractiveLogin(ctx context.Context, cfg *oauth2.Config, timeout time.Duration, openURL func(string) error, announce func(string)) (*oauth2.Token, error) {
	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI: %w", err)
	}
	if redirect.Port() == "" {
		return nil, fmt.Errorf("redirect URI %q must carry an explicit port for the local callback listener", cfg.RedirectURL)
	}

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	// Buffered so the handler never blocks; only the first callback wins.
	results := make(chan callbackResult, 1)

	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := callbackResult{
			code:     q.Get("code"),
			state:    q.Get("state"),
			errCode:  q.Get("error"),
			errDescr: q.Get("error_description"),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.errCode != "" || res.code == "" {
			fmt.Fprint(w, "<html><body><h1>Authorization failed</h1><p>You can close this tab and return to the terminal.</p></body></html>")
		} else {
			fmt.Fprint(w, "<html><body><h1>Authorization successful</h1><p>You can close this tab and return to the terminal.</p></body></html>")
		}

		select {
		case results <- res:
		default:
		}
	})

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("starting callback listener on %s: %w", redirect.Host, err)
	}

	srv := &http.Server{Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("callback listener: %w", err)
		}
		return nil
	})

	authURL := cfg.AuthCodeURL(state)
	if announce != nil {
		announce(authURL)
	}
	if openURL != nil {
		// Failure to spawn a browser is not fatal; the URL has been
		// announced and can be opened by hand.
		_ = openURL(authURL)
	}

	var res callbackResult
	var waitErr error
	select {
	case res = <-results:
	case <-time.After(timeout):
		waitErr = apperrors.ErrLoginTimeout
	case <-gctx.Done():
		waitErr = gctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil && waitErr == nil {
		return nil, err
	}
	if waitErr != nil {
		return nil, waitErr
	}

	if res.errCode != "" {
		desc := res.errDescr
		if desc == "" {
			desc = res.errCode
		}
		return nil, fmt.Errorf("authorization rejected: %s", desc)
	}
	if res.code == "" {
		return nil, fmt.Errorf("callback request carried no authorization code")
	}
	if res.state != state {
		return nil, apperrors.ErrStateMismatch
	}

	tok, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	return tok, nil
}

// randomState returns an unguessable state parameter.
func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
