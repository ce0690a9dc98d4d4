package mendeley

// Document is a single reference in a Mendeley library.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Created string `json:"created"`
	GroupID string `json:"group_id,omitempty"`
	Hidden  bool   `json:"hidden,omitempty"`
	Source  string `json:"source,omitempty"`
	Year    int    `json:"year,omitempty"`
}

// NewDocument is the payload for POST /documents.
type NewDocument struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	GroupID string `json:"group_id,omitempty"`
	Hidden  bool   `json:"hidden"`
}

// File is an attachment on a document.
type File struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mime_type"`
}

// Group is a shared library the user belongs to.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessLevel string `json:"access_level"`
}

// DocumentType is one of the reference types accepted by the provider.
type DocumentType struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AttachOutcome tags the result of a file upload.
type AttachOutcome int

const (
	// AttachCreated means the provider stored a new attachment.
	AttachCreated AttachOutcome = iota

	// AttachAlreadyExists means the provider reported the file as a
	// duplicate for this document. Attaching is idempotent from the
	// caller's perspective, so this is not an error.
	AttachAlreadyExists
)

// AttachResult is the tagged outcome of AttachFile. File is only
// populated when Outcome is AttachCreated.
type AttachResult struct {
	Outcome AttachOutcome
	File    File
}
