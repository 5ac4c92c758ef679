package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrMissingAction = errors.New("action is required")
	ErrMissingTitle  = errors.New("title is required")
)

// Sentinel errors for entity lookups.
var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrWorkspaceNotFound = errors.New("workspace not found")
)

// Audit write failure causes. AuditWriteError wraps exactly one of these
// (or a raw storage error) so callers can branch with errors.Is.
var (
	// ErrCanonicalization means the entry fields could not be turned into
	// canonical bytes. Always a caller bug; never retried.
	ErrCanonicalization = errors.New("audit entry canonicalization failed")

	// ErrSerializationTimeout means the ledger append lock could not be
	// acquired within the bounded wait. Transient.
	ErrSerializationTimeout = errors.New("timed out waiting for ledger append lock")

	// ErrStorageUnavailable means the underlying persistence failed.
	ErrStorageUnavailable = errors.New("ledger storage unavailable")
)

// ErrAccessDenied is returned by ledger queries when the caller is neither
// an admin of the requested workspace nor globally privileged.
var ErrAccessDenied = errors.New("access denied")

// AuditWriteError is the single error kind surfaced by a failed ledger
// append. Cause carries the underlying failure.
type AuditWriteError struct {
	Cause error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write failed: %v", e.Cause)
}

func (e *AuditWriteError) Unwrap() error { return e.Cause }

// NewAuditWriteError wraps cause as an AuditWriteError, or returns nil for
// a nil cause.
func NewAuditWriteError(cause error) error {
	if cause == nil {
		return nil
	}
	return &AuditWriteError{Cause: cause}
}

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
