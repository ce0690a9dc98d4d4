package cli

import (
	"github.com/spf13/cobra"

	"github.com/shuichiro-makigaki/mendeley-cli/internal/format"
	"github.com/shuichiro-makigaki/mendeley-cli/mendeley"
)

func newCreateCmd() *cobra.Command {
	create := &cobra.Command{
		Use:   "create",
		Short: "Create resources",
	}

	create.AddCommand(newCreateDocumentCmd())

	return create
}

func newCreateDocumentCmd() *cobra.Command {
	var title, docType, groupUUID, printFormat string
	var hidden bool

	cmd := &cobra.Command{
		Use:   "document",
		Short: "Create a document",
		Long: `Creates a new document in the personal library, or in a group library
when --group-uuid is set. The list of valid --doctype values comes from
'get documenttypes'.`,
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

			doc, err := api.CreateDocument(cmd.Context(), mendeley.NewDocument{
				Title:   title,
				Type:    docType,
				GroupID: groupUUID,
				Hidden:  hidden,
			})
			if err != nil {
				return err
			}

			d := format.NewDataset("UUID", "Title")
			d.Append(doc.ID, doc.Title)

			return format.Render(cmd.OutOrStdout(), d, printFormat)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title of the new document")
	cmd.Flags().StringVar(&docType, "doctype", "journal", "Document type")
	cmd.Flags().StringVar(&groupUUID, "group-uuid", "", "Create the document in this group's library")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Exclude the document from the Mendeley catalog")
	cmd.MarkFlagRequired("title")
	registerPrintFormat(cmd, &printFormat, "")

	return cmd
}
