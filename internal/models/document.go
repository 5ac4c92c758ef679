package models

import "time"

// Document is the minimal business entity the audit ledger is exercised
// against. The wider platform's document features live elsewhere; this
// repo only needs a mutation to be atomic with its audit record.
type Document struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateDocumentRequest is the payload for document creation.
type CreateDocumentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Validate checks required fields on a create request.
func (r CreateDocumentRequest) Validate() error {
	if r.Title == "" {
		return ErrMissingTitle
	}
	if len(r.Title) > 500 {
		return ErrFieldTooLong("title", 500)
	}
	return nil
}
