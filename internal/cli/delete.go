package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/shuichiro-makigaki/mendeley-cli/internal/errors"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/resolver"
)

func newDeleteCmd() *cobra.Command {
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete resources",
	}

	del.AddCommand(newDeleteDocumentCmd())
	del.AddCommand(newDeleteFileCmd())

	return del
}

func newDeleteDocumentCmd() *cobra.Command {
	var documentUUID string
	var permanent bool

	cmd := &cobra.Command{
		Use:   "document",
		Short: "Move a document to trash, or delete it permanently",
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

			// Resolving first turns an unknown UUID into a not-found
			// error before anything is trashed.
			docs, err := resolver.Documents(cmd.Context(), api, resolver.Selector{UUID: documentUUID})
			if err != nil {
				return err
			}
			doc, err := resolver.RequireSingle(docs, resolver.Selector{UUID: documentUUID})
			if err != nil {
				return err
			}

			if permanent {
				if err := api.DeleteDocument(cmd.Context(), doc.ID); err != nil {
					return err
				}
			} else {
				if err := api.TrashDocument(cmd.Context(), doc.ID); err != nil {
					return err
				}
			}

			e.logger.Info("document deleted", "uuid", doc.ID, "title", doc.Title, "permanent", permanent)
			return nil
		},
	}

	cmd.Flags().StringVar(&documentUUID, "document-uuid", "", "UUID of the document to delete")
	cmd.Flags().BoolVar(&permanent, "permanent", false, "Delete permanently instead of moving to trash")
	cmd.MarkFlagRequired("document-uuid")

	return cmd
}

func newDeleteFileCmd() *cobra.Command {
	var sf selectorFlags
	var fileUUID string

	cmd := &cobra.Command{
		Use:   "file",
		Short: "Delete a file attached to exactly one document",
		Long: `Resolves the document selector to exactly one document and deletes the
file with --file-uuid only if it is attached to that document. A file
UUID that exists elsewhere in the library is reported as not found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadRunEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			sel := sf.selector()
			if sel.Empty() {
				return apperrors.ErrSelectorRequired
			}

			api, err := e.newAPI(cmd.Context())
			if err != nil {
				return err
			}

			docs, err := resolver.Documents(cmd.Context(), api, sel)
			if err != nil {
				return err
			}
			doc, err := resolver.RequireSingle(docs, sel)
			if err != nil {
				return err
			}

			if err := resolver.DeleteFile(cmd.Context(), api, doc, fileUUID); err != nil {
				return fmt.Errorf("deleting file %s: %w", fileUUID, err)
			}

			e.logger.Info("file deleted", "file_uuid", fileUUID, "document_uuid", doc.ID)
			return nil
		},
	}

	sf.register(cmd, false)
	cmd.Flags().StringVar(&fileUUID, "file-uuid", "", "UUID of the file to delete")
	cmd.MarkFlagRequired("file-uuid")

	return cmd
}
