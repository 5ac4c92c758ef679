package client

import "time"

// AuditEntry is one row of the hash-chained audit ledger.
type AuditEntry struct {
	ID           int64          `json:"id"`
	WorkspaceID  *string        `json:"workspace_id,omitempty"`
	ActorUserID  *string        `json:"actor_user_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	PreviousHash string         `json:"previous_hash"`
	RecordHash   string         `json:"record_hash"`

	// WorkspaceName is populated on entries from the global admin view only.
	WorkspaceName string `json:"workspace_name,omitempty"`
}

// AuditQueryOptions are the optional filters for audit queries. Filters
// combine with AND; zero values are ignored.
type AuditQueryOptions struct {
	WorkspaceID string
	ActorUserID string
	Action      string
	ResourceID  string
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

// BrokenLink is one chain-verification finding.
type BrokenLink struct {
	EntryID  int64  `json:"entry_id"`
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// VerifyResponse is the result of a chain verification run.
type VerifyResponse struct {
	Status string       `json:"status"`
	Breaks []BrokenLink `json:"breaks"`
}

// Document is a workspace document.
type Document struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateDocumentRequest is the payload for creating a document.
type CreateDocumentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

// HealthResponse is the liveness check payload.
type HealthResponse struct {
	Status          string  `json:"status"`
	Version         string  `json:"version"`
	Database        string  `json:"database"`
	AuditStatus     string  `json:"audit_status"`
	AuditLedgerSize int64   `json:"audit_ledger_bytes"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}
