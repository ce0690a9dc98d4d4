// Package cli wires the command tree: verbs (get, attach, create,
// delete) grouped over nouns (token, documents, files, groups, ...).
// Commands read configuration from the environment at run time, so tests
// can drive them with t.Setenv and a fake API server.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// NewRootCmd builds a fresh command tree. A new tree per invocation keeps
// flag state isolated, which matters for tests.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mendeley-cli",
		Short: "Command-line client for the Mendeley reference manager API",
		Long: `mendeley-cli talks to the Mendeley web API: list and search documents,
attach and delete files, create documents, and export results as a
table, JSON, YAML, CSV, or BibTeX.

Configuration comes from environment variables (optionally via .env):

  MENDELEY_CLIENT_ID            OAuth2 client id (required)
  MENDELEY_CLIENT_SECRET        client secret ('get token' only)
  MENDELEY_REDIRECT_URI         registered redirect URI (required)
  MENDELEY_USERNAME/_PASSWORD   implicit-grant credentials (optional)
  MENDELEY_OAUTH2_TOKEN_BASE64  token printed by 'get token'
  MENDELEY_TOKEN_STORE          optional path to a local token store`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newGetCmd(),
		newAttachCmd(),
		newCreateCmd(),
		newDeleteCmd(),
		newVersionCmd(),
	)

	return root
}

// Execute runs the CLI once.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mendeley-cli %s\n", Version)
		},
	}
}
