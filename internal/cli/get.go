package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shuichiro-makigaki/mendeley-cli/internal/auth"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/format"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/resolver"
)

func newGetCmd() *cobra.Command {
	get := &cobra.Command{
		Use:   "get",
		Short: "Fetch tokens, documents, files, document types, or groups",
	}

	get.AddCommand(
		newGetTokenCmd(),
		newGetDocumentsCmd(),
		newGetFilesCmd(),
		newGetDocumentTypesCmd(),
		newGetGroupsCmd(),
	)

	return get
}

func newGetTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Log in interactively and print the OAuth2 token",
		Long: `Runs the authorization-code flow: opens the provider's login page in
your browser, waits for the redirect on the configured redirect URI,
and prints the resulting token in base64 form. Export it as
MENDELEY_OAUTH2_TOKEN_BASE64 for subsequent commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadRunEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.cfg.ValidateLogin(); err != nil {
				return err
			}

			creds := auth.Credentials{
				ClientID:     e.cfg.ClientID,
				ClientSecret: e.cfg.ClientSecret,
				RedirectURI:  e.cfg.RedirectURI,
			}
			oauthCfg := auth.OAuthConfig(creds, e.cfg.AuthURL, e.cfg.TokenURL)

			announce := func(u string) {
				e.logger.Info("complete the login in your browser", "url", u)
			}

			tok, err := auth.InteractiveLogin(cmd.Context(), oauthCfg, e.cfg.LoginTimeout, auth.OpenBrowser, announce)
			if err != nil {
				return err
			}

			encoded, err := auth.EncodeToken(tok)
			if err != nil {
				return err
			}

			if e.store != nil {
				if err := e.store.SetToken(tok); err != nil {
					return err
				}
				e.logger.Info("token saved to store", "path", e.cfg.TokenStorePath)
			}

			fmt.Fprintln(cmd.OutOrStdout(), encoded)

			return nil
		},
	}
}

func newGetDocumentsCmd() *cobra.Command {
	var sf selectorFlags
	var printFormat string

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List or search documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadRunEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			api, err := e.newAPI(cmd.Context())
			if err != nil {
				return err
			}

			sel := sf.selector()

			if printFormat == "bibtex" {
				if sel.UUID != "" {
					return fmt.Errorf("--print-format bibtex cannot be combined with --document-uuid")
				}
				bib, err := api.DocumentsBibTeX(cmd.Context(), sel.Title, sel.GroupUUID)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), bib)

				return nil
			}

			docs, err := resolver.Documents(cmd.Context(), api, sel)
			if err != nil {
				return err
			}

			d := format.NewDataset("UUID", "Title")
			for _, doc := range docs {
				d.Append(doc.ID, doc.Title)
			}

			return format.Render(cmd.OutOrStdout(), d, printFormat)
		},
	}

	sf.register(cmd, true)
	registerPrintFormat(cmd, &printFormat, "bibtex")

	return cmd
}

func newGetFilesCmd() *cobra.Command {
	var sf selectorFlags
	var printFormat string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List files attached to matching documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadRunEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			api, err := e.newAPI(cmd.Context())
			if err != nil {
				return err
			}

			docs, err := resolver.Documents(cmd.Context(), api, sf.selector())
			if err != nil {
				return err
			}

			d := format.NewDataset("UUID", "FileName", "Size", "MimeType")
			for i := range docs {
				files, err := resolver.Files(cmd.Context(), api, &docs[i])
				if err != nil {
					return err
				}
				for _, f := range files {
					d.Append(f.ID, f.FileName, strconv.FormatInt(f.Size, 10), f.MimeType)
				}
			}

			return format.Render(cmd.OutOrStdout(), d, printFormat)
		},
	}

	sf.register(cmd, false)
	registerPrintFormat(cmd, &printFormat, "")

	return cmd
}

func newGetDocumentTypesCmd() *cobra.Command {
	var printFormat string

	cmd := &cobra.Command{
		Use:   "documenttypes",
		Short: "List the document types the provider accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadRunEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			api, err := e.newAPI(cmd.Context())
			if err != nil {
				return err
			}

			types, err := api.ListDocumentTypes(cmd.Context())
			if err != nil {
				return err
			}

			d := format.NewDataset("Name", "Description")
			for _, dt := range types {
				d.Append(dt.Name, dt.Description)
			}

			return format.Render(cmd.OutOrStdout(), d, printFormat)
		},
	}

	registerPrintFormat(cmd, &printFormat, "")

	return cmd
}

func newGetGroupsCmd() *cobra.Command {
	var printFormat string

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List the groups the user belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadRunEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			api, err := e.newAPI(cmd.Context())
			if err != nil {
				return err
			}

			groups, err := api.ListGroups(cmd.Context())
			if err != nil {
				return err
			}

			d := format.NewDataset("UUID", "Name", "Access")
			for _, g := range groups {
				d.Append(g.ID, g.Name, g.AccessLevel)
			}

			return format.Render(cmd.OutOrStdout(), d, printFormat)
		},
	}

	registerPrintFormat(cmd, &printFormat, "")

	return cmd
}
