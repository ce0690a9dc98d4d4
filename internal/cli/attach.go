package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	apperrors "github.com/shuichiro-makigaki/mendeley-cli/internal/errors"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/format"
	"github.com/shuichiro-makigaki/mendeley-cli/internal/resolver"
	"github.com/shuichiro-makigaki/mendeley-cli/mendeley"
)

func newAttachCmd() *cobra.Command {
	attach := &cobra.Command{
		Use:   "attach",
		Short: "Attach files to documents",
	}

	attach.AddCommand(newAttachFileCmd())

	return attach
}

func newAttachFileCmd() *cobra.Command {
	var sf selectorFlags
	var filePath, fileTitle, printFormat string

	cmd := &cobra.Command{
		Use:   "file",
		Short: "Upload a local file onto exactly one document",
		Long: `Resolves the document selector to exactly one document and uploads the
file. With --file-title the upload is staged under that name first,
since the provider derives the attachment name from the uploaded file.
A file the provider already knows for this document is reported as a
warning and counts as success.`,
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

			res, err := resolver.Attach(cmd.Context(), api, e.logger, doc, filePath, fileTitle)
			if err != nil {
				return err
			}

			d := format.NewDataset("UUID", "FileName", "Size", "MimeType")
			if res.Outcome == mendeley.AttachCreated {
				f := res.File
				d.Append(f.ID, f.FileName, strconv.FormatInt(f.Size, 10), f.MimeType)
			}

			return format.Render(cmd.OutOrStdout(), d, printFormat)
		},
	}

	sf.register(cmd, false)
	cmd.Flags().StringVar(&filePath, "file", "", "Path of the local file to upload")
	cmd.Flags().StringVar(&fileTitle, "file-title", "", "Name to attach the file under (defaults to the file's own name)")
	cmd.MarkFlagRequired("file")
	registerPrintFormat(cmd, &printFormat, "")

	return cmd
}
