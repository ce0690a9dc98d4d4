// Package resolver translates user-supplied selectors (title, UUID,
// group scope) into concrete documents and files, and orchestrates the
// attach/delete operations that need a unique target.
package resolver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	apperrors "github.com/shuichiro-makigaki/mendeley-cli/internal/errors"
	"github.com/shuichiro-makigaki/mendeley-cli/mendeley"
)

// API is the subset of the Mendeley client the resolver needs. It exists
// so tests can substitute a fake.
type API interface {
	ListDocuments(ctx context.Context, groupID string) ([]mendeley.Document, error)
	SearchDocuments(ctx context.Context, title, groupID string) ([]mendeley.Document, error)
	GetDocument(ctx context.Context, id string) (*mendeley.Document, error)
	ListFiles(ctx context.Context, documentID string) ([]mendeley.File, error)
	AttachFile(ctx context.Context, documentID, fileName, contentType string, r io.Reader) (*mendeley.AttachResult, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// Selector identifies one or more documents. UUID wins over Title; an
// empty selector means "everything" (list semantics).
type Selector struct {
	Title     string
	UUID      string
	GroupUUID string
}

// Empty reports whether neither a title nor a UUID was supplied.
func (s Selector) Empty() bool {
	return s.Title == "" && s.UUID == ""
}

// String renders the selector for error messages.
func (s Selector) String() string {
	switch {
	case s.UUID != "":
		return "uuid " + s.UUID
	case s.Title != "":
		return fmt.Sprintf("title %q", s.Title)
	default:
		return "no selector"
	}
}

// validate checks UUID-shaped fields before they reach the provider.
func (s Selector) validate() error {
	if s.UUID != "" {
		if _, err := uuid.Parse(s.UUID); err != nil {
			return fmt.Errorf("invalid document UUID %q: %w", s.UUID, err)
		}
	}
	if s.GroupUUID != "" {
		if _, err := uuid.Parse(s.GroupUUID); err != nil {
			return fmt.Errorf("invalid group UUID %q: %w", s.GroupUUID, err)
		}
	}

	return nil
}

// Documents resolves a selector to documents. An explicit UUID is a
// direct lookup and never a title search; a title runs a provider-side
// search scoped to the group; an empty selector lists everything.
// Single-target callers gate the result through RequireSingle.
func Documents(ctx context.Context, api API, sel Selector) ([]mendeley.Document, error) {
	if err := sel.validate(); err != nil {
		return nil, err
	}

	if sel.UUID != "" {
		doc, err := api.GetDocument(ctx, sel.UUID)
		if err != nil {
			return nil, fmt.Errorf("resolving document by uuid: %w", err)
		}

		return []mendeley.Document{*doc}, nil
	}

	if sel.Title != "" {
		docs, err := api.SearchDocuments(ctx, sel.Title, sel.GroupUUID)
		if err != nil {
			return nil, fmt.Errorf("resolving documents by title: %w", err)
		}

		return docs, nil
	}

	docs, err := api.ListDocuments(ctx, sel.GroupUUID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	return docs, nil
}

// RequireSingle gates a resolution that must address exactly one
// document. Zero or multiple matches produce an AmbiguityError whose
// count equals the number of matches.
func RequireSingle(docs []mendeley.Document, sel Selector) (*mendeley.Document, error) {
	if len(docs) != 1 {
		return nil, &apperrors.AmbiguityError{Kind: "documents", Selector: sel.String(), Count: len(docs)}
	}

	return &docs[0], nil
}

// Files lists the files attached to one document.
func Files(ctx context.Context, api API, doc *mendeley.Document) ([]mendeley.File, error) {
	files, err := api.ListFiles(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving files of document %s: %w", doc.ID, err)
	}

	return files, nil
}

// Attach uploads a local file onto the document. When displayName is
// non-empty the file is first staged under that name in a temporary
// directory, since the provider derives the attachment name from the
// uploaded file. The staged copy is removed on every path, including
// upload failure. A provider-reported duplicate is logged and returned
// as a success outcome.
func Attach(ctx context.Context, api API, logger *slog.Logger, doc *mendeley.Document, localPath, displayName string) (*mendeley.AttachResult, error) {
	uploadPath := localPath
	if displayName != "" {
		staged, cleanup, err := stageCopy(localPath, displayName)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		uploadPath = staged
	}

	f, err := os.Open(uploadPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", uploadPath, err)
	}
	defer f.Close()

	fileName := filepath.Base(uploadPath)
	contentType := mime.TypeByExtension(filepath.Ext(fileName))

	res, err := api.AttachFile(ctx, doc.ID, fileName, contentType, f)
	if err != nil {
		return nil, err
	}

	if res.Outcome == mendeley.AttachAlreadyExists {
		logger.Warn("file already attached to document, nothing to do",
			"document_id", doc.ID, "file_name", fileName)
	}

	return res, nil
}

// stageCopy copies src into a fresh temporary directory under the given
// name and returns the staged path plus a cleanup func removing the
// whole directory.
func stageCopy(src, name string) (string, func(), error) {
	if filepath.Base(name) != name || name == "." || name == ".." {
		return "", nil, fmt.Errorf("invalid file title %q", name)
	}

	dir, err := os.MkdirTemp("", "mendeley-attach-")
	if err != nil {
		return "", nil, fmt.Errorf("creating staging directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	in, err := os.Open(src)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("staging copy: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		cleanup()
		return "", nil, fmt.Errorf("staging copy: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("staging copy: %w", err)
	}

	return dst, cleanup, nil
}

// DeleteFile resolves fileUUID among the target document's files and
// deletes the unique match remotely. An id belonging to a different
// document resolves to "found 0 files" here.
func DeleteFile(ctx context.Context, api API, doc *mendeley.Document, fileUUID string) error {
	if _, err := uuid.Parse(fileUUID); err != nil {
		return fmt.Errorf("invalid file UUID %q: %w", fileUUID, err)
	}

	files, err := api.ListFiles(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("listing files of document %s: %w", doc.ID, err)
	}

	var matches []mendeley.File
	for _, f := range files {
		if f.ID == fileUUID {
			matches = append(matches, f)
		}
	}

	if len(matches) != 1 {
		return &apperrors.AmbiguityError{Kind: "files", Selector: "uuid " + fileUUID, Count: len(matches)}
	}

	if err := api.DeleteFile(ctx, matches[0].ID); err != nil {
		return fmt.Errorf("deleting file %s: %w", matches[0].ID, err)
	}

	return nil
}
