package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shuichiro-makigaki/mendeley-cli/internal/config"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/logging"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/resolver"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/session"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/state"
	"github.com/shuichiro-makigaki/mendeley-cli/mendeley"
)

// runEnv bundles what every command needs: configuration, a logger, and
// the optional token store. Built per invocation.
type runEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *state.Store
}

// loadRunEnv reads configuration and opens the token store when one is
// configured.
func loadRunEnv() (*runEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	e := &runEnv{cfg: cfg, logger: logging.NewLogger(cfg.Environment)}

	if cfg.TokenStorePath != "" {
		store, err := state.Open(cfg.TokenStorePath)
		if err != nil {
			return nil, err
		}
		e.store = store
	}

	return e, nil
}

// Close releases the token store, if open.
func (e *runEnv) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// tokenStore adapts the optional *state.Store to the session interface,
// keeping the interface value nil when no store is configured.
func (e *runEnv) tokenStore() session.TokenStore {
	if e.store == nil {
		return nil
	}

	return e.store
}

// newAPI validates session configuration, restores or establishes a
// session, and returns the API client bound to it.
func (e *runEnv) newAPI(ctx context.Context) (*mendeley.Client, error) {
	if err := e.cfg.ValidateSession(); err != nil {
		return nil, err
	}

	// Implicit-flow convenience: prompt rather than fail when only the
	// password is missing and we are on a terminal.
	if e.cfg.Username != "" && e.cfg.Password == "" {
		password, err := promptPassword()
		if err != nil {
			return nil, err
		}
		e.cfg.Password = password
	}

	sess, err := session.New(ctx, e.cfg, e.tokenStore(), e.logger)
	if err != nil {
		return nil, err
	}

	return mendeley.NewClient(sess.Client(), e.cfg.APIURL), nil
}

// promptPassword reads the password from the terminal without echo.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("MENDELEY_PASSWORD is not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Mendeley password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(raw), nil
}

// selectorFlags are the document-addressing flags shared by several
// commands.
type selectorFlags struct {
	documentTitle string
	documentUUID  string
	groupUUID     string
}

func (sf *selectorFlags) register(cmd *cobra.Command, withGroup bool) {
	cmd.Flags().StringVar(&sf.documentTitle, "document-title", "", "Document title to search for")
	cmd.Flags().StringVar(&sf.documentUUID, "document-uuid", "", "Document UUID for a direct lookup")
	if withGroup {
		cmd.Flags().StringVar(&sf.groupUUID, "group-uuid", "", "Group UUID to scope the query to")
	}
	cmd.MarkFlagsMutuallyExclusive("document-title", "document-uuid")
}

func (sf *selectorFlags) selector() resolver.Selector {
	return resolver.Selector{
		Title:     sf.documentTitle,
		UUID:      sf.documentUUID,
		GroupUUID: sf.groupUUID,
	}
}

func registerPrintFormat(cmd *cobra.Command, printFormat *string, extra string) {
	usage := "Output format: table, json, yaml, csv"
	if extra != "" {
		usage += ", " + extra
	}
	cmd.Flags().StringVar(printFormat, "print-format", "table", usage)
}
