// Package mendeley is a typed client for the Mendeley reference-manager
// web API. Authentication is carried by the injected http.Client (an
// OAuth2 transport); this package only shapes requests and responses.
package mendeley

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	apperrors "github.com/shuichiro-makigaki/mendeley-cli/internal/errors"
)

const defaultBaseURL = "https://api.mendeley.com"

const (
	// httpClientTimeout is the timeout for the default HTTP client used
	// when no custom client is provided.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads. Listing responses are
	// small JSON payloads; BibTeX exports stay well under this.
	maxAPIResponseBytes = 8 * 1024 * 1024
)

// Vendor media types. The API versions its payloads through these rather
// than through the URL.
const (
	mediaTypeDocument     = "application/vnd.mendeley-document.1+json"
	mediaTypeFile         = "application/vnd.mendeley-file.1+json"
	mediaTypeGroup        = "application/vnd.mendeley-group.1+json"
	mediaTypeDocumentType = "application/vnd.mendeley-document-type.1+json"
	mediaTypeBibTeX       = "application/x-bibtex"
)

// APIError is a non-2xx response from the Mendeley API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API %s (%d): %s", e.Endpoint, e.StatusCode, e.Message)
}

// Is reports 404 responses as apperrors.ErrNotFound so callers can match
// missing resources with errors.Is.
func (e *APIError) Is(target error) bool {
	return target == apperrors.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the Mendeley REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an API client using the given http.Client, which is
// expected to attach OAuth2 bearer tokens (e.g. from oauth2.NewClient).
// If httpClient is nil, a plain client with a 30-second timeout is used.
// baseURL overrides the production endpoint when non-empty.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpClientTimeout}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// apiErrorMessage extracts a human-readable message from an error body.
// The API is inconsistent about the field name ("message" in most error
// payloads, "error"/"error_description" from the OAuth endpoints), so
// gjson probes the known shapes before falling back to the raw body.
func apiErrorMessage(body []byte) string {
	for _, path := range []string{"message", "error_description", "error"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}

	return sanitizeResponseBody(body)
}

// do sends a request and decodes a JSON response into result (when result
// is non-nil). Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, header http.Header, body io.Reader, result any) error {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(respBody),
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response from %s: %w", endpoint, err)
		}
	}

	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, accept string, result any) error {
	header := http.Header{}
	header.Set("Accept", accept)

	return c.do(ctx, http.MethodGet, endpoint, query, header, nil, result)
}

// ListDocuments returns the user's documents, scoped to a group when
// groupID is non-empty. One page only; the CLI does not paginate.
func (c *Client) ListDocuments(ctx context.Context, groupID string) ([]Document, error) {
	query := url.Values{}
	if groupID != "" {
		query.Set("group_id", groupID)
	}

	var docs []Document
	if err := c.get(ctx, "/documents", query, mediaTypeDocument, &docs); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	return docs, nil
}

// SearchDocuments performs a provider-side title search. Matching
// semantics (substring, stemming) are the provider's.
func (c *Client) SearchDocuments(ctx context.Context, title, groupID string) ([]Document, error) {
	query := url.Values{}
	query.Set("title", title)
	if groupID != "" {
		query.Set("group_id", groupID)
	}

	var docs []Document
	if err := c.get(ctx, "/search/documents", query, mediaTypeDocument, &docs); err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	return docs, nil
}

// GetDocument fetches one document by id. A missing id satisfies
// errors.Is(err, apperrors.ErrNotFound).
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.get(ctx, "/documents/"+url.PathEscape(id), nil, mediaTypeDocument, &doc); err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}

	return &doc, nil
}

// CreateDocument creates a new document and returns the stored record.
func (c *Client) CreateDocument(ctx context.Context, doc NewDocument) (*Document, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshalling document: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", mediaTypeDocument)
	header.Set("Accept", mediaTypeDocument)

	var created Document
	if err := c.do(ctx, http.MethodPost, "/documents", nil, header, bytes.NewReader(payload), &created); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	return &created, nil
}

// TrashDocument moves a document to the provider's trash.
func (c *Client) TrashDocument(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/documents/"+url.PathEscape(id)+"/trash", nil, nil, nil, nil); err != nil {
		return fmt.Errorf("trashing document %s: %w", id, err)
	}

	return nil
}

// DeleteDocument permanently deletes a document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil, nil, nil); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}

	return nil
}

// ListFiles returns the files attached to one document.
func (c *Client) ListFiles(ctx context.Context, documentID string) ([]File, error) {
	query := url.Values{}
	query.Set("document_id", documentID)

	var files []File
	if err := c.get(ctx, "/files", query, mediaTypeFile, &files); err != nil {
		return nil, fmt.Errorf("listing files for document %s: %w", documentID, err)
	}

	return files, nil
}

// isDuplicateFileMessage checks whether an API error message reports the
// uploaded file as already attached. The provider answers "This file
// already exists for this document" with a conflict status.
func isDuplicateFileMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "already exists")
}

// AttachFile uploads r as an attachment named fileName on the given
// document. A provider-reported duplicate is returned as an
// AttachAlreadyExists outcome, not an error.
func (c *Client) AttachFile(ctx context.Context, documentID, fileName string, contentType string, r io.Reader) (*AttachResult, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("Accept", mediaTypeFile)
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	header.Set("Link", fmt.Sprintf("<%s/documents/%s>; rel=\"related\"", c.baseURL, documentID))

	var file File
	err := c.do(ctx, http.MethodPost, "/files", nil, header, r, &file)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusConflict || isDuplicateFileMessage(apiErr.Message)) {
			return &AttachResult{Outcome: AttachAlreadyExists}, nil
		}

		return nil, fmt.Errorf("attaching file to document %s: %w", documentID, err)
	}

	return &AttachResult{Outcome: AttachCreated, File: file}, nil
}

// DeleteFile deletes one attachment by id.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.do(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, nil, nil, nil); err != nil {
		return fmt.Errorf("deleting file %s: %w", fileID, err)
	}

	return nil
}

// ListGroups returns the groups the user belongs to.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.get(ctx, "/groups", nil, mediaTypeGroup, &groups); err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	return groups, nil
}

// ListDocumentTypes returns the reference types the provider accepts.
func (c *Client) ListDocumentTypes(ctx context.Context) ([]DocumentType, error) {
	var types []DocumentType
	if err := c.get(ctx, "/document_types", nil, mediaTypeDocumentType, &types); err != nil {
		return nil, fmt.Errorf("listing document types: %w", err)
	}

	return types, nil
}

// DocumentsBibTeX returns the documents matching the given selector
// rendered as BibTeX by the provider. An empty title lists everything.
func (c *Client) DocumentsBibTeX(ctx context.Context, title, groupID string) (string, error) {
	endpoint := "/documents"
	query := url.Values{}
	if title != "" {
		endpoint = "/search/documents"
		query.Set("title", title)
	}
	if groupID != "" {
		query.Set("group_id", groupID)
	}

	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", mediaTypeBibTeX)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("exporting BibTeX: %w", &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(body),
		})
	}

	return string(body), nil
}
