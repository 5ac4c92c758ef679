package models

import "time"

// AuditFields holds the caller-supplied portion of an audit entry. The
// ledger assigns id, created_at, previous_hash and record_hash at append
// time; everything here is fixed by the call site.
type AuditFields struct {
	WorkspaceID  *string        `json:"workspace_id,omitempty"`
	ActorUserID  *string        `json:"actor_user_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
}

// AuditEntry is a single persisted row of the hash-chained audit ledger.
// Entries are append-only: once written, no field ever changes.
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

	// WorkspaceName is denormalized onto entries returned from the
	// privileged cross-tenant view only.
	WorkspaceName string `json:"workspace_name,omitempty"`
}

// Fields returns the caller-supplied portion of a stored entry, used when
// recomputing hashes during verification.
func (e *AuditEntry) Fields() AuditFields {
	return AuditFields{
		WorkspaceID:  e.WorkspaceID,
		ActorUserID:  e.ActorUserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
	}
}

// AuditFilter holds the optional, AND-combined filters for querying the
// ledger. Zero values mean "no constraint".
type AuditFilter struct {
	WorkspaceID  string
	ActorUserID  string
	Action       string
	ResourceID   string
	CreatedAfter *time.Time
	CreatedUntil *time.Time
	Limit        int
	Offset       int
}

// Pagination bounds for ledger queries. Requests above MaxAuditLimit are
// clamped, not rejected.
const (
	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000
)

// EffectiveLimit returns the filter's limit with the default applied and
// the ceiling clamped.
func (f AuditFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultAuditLimit
	}
	if f.Limit > MaxAuditLimit {
		return MaxAuditLimit
	}
	return f.Limit
}

// BrokenLink is one chain-verification finding: the stored hash of entry
// EntryID does not match the value recomputed from its fields and its true
// global predecessor.
type BrokenLink struct {
	EntryID  int64  `json:"entry_id"`
	Field    string `json:"field"` // "record_hash" or "previous_hash"
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Validate checks the caller-supplied fields before hashing. Action is the
// only mandatory field; everything else is contextual.
func (f AuditFields) Validate() error {
	if f.Action == "" {
		return ErrMissingAction
	}
	if len(f.Action) > 255 {
		return ErrFieldTooLong("action", 255)
	}
	if len(f.ResourceID) > 255 {
		return ErrFieldTooLong("resource_id", 255)
	}
	return nil
}
