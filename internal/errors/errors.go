// Package errors defines sentinel and typed errors shared across the CLI.
// Callers match sentinels with errors.Is and typed errors with errors.As.
package errors

import (
	"errors"
	"fmt"
)

// Auth errors.
var (
	ErrLoginRequired = errors.New("login required: run 'mendeley-cli get token' and set MENDELEY_OAUTH2_TOKEN_BASE64")
	ErrInvalidToken  = errors.New("invalid or malformed token")
	ErrLoginTimeout  = errors.New("timed out waiting for the browser callback")
	ErrStateMismatch = errors.New("authorization state mismatch")
)

// Resolution errors.
var (
	ErrSelectorRequired = errors.New("either --document-title or --document-uuid is required")
	ErrNotFound         = errors.New("not found")
)

// AmbiguityError reports a single-target resolution that matched zero or
// more than one record. Count always equals the number of matches seen.
type AmbiguityError struct {
	Kind     string // "documents" or "files"
	Selector string
	Count    int
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("found %d %s for %s", e.Count, e.Kind, e.Selector)
}
