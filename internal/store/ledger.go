package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/traceboard/traceboard/internal/hashchain"
	"github.com/traceboard/traceboard/internal/models"
)

// ledgerLockKey is the advisory lock key guarding the ledger's
// read-tail/compute/insert critical section. One lock for the whole
// chain: concurrent appenders serialize here so the chain never forks.
const ledgerLockKey int64 = 0x7462617564697431 // "tbaudit1"

// pgLockNotAvailable is the SQLSTATE raised when lock_timeout expires.
const pgLockNotAvailable = "55P03"

// defaultAppendLockTimeout bounds the advisory lock wait when no explicit
// timeout is configured.
const defaultAppendLockTimeout = 5 * time.Second

// LedgerStore provides append and read access for the audit_log table.
// It exposes no update or delete operations: ledger rows are immutable,
// and the storage layer enforces that independently via triggers.
type LedgerStore struct {
	Base

	// LockTimeout bounds the wait for the append lock. Zero means the
	// default.
	LockTimeout time.Duration
}

// NewLedgerStore creates a LedgerStore.
func NewLedgerStore(base Base) *LedgerStore {
	return &LedgerStore{Base: base}
}

func (s *LedgerStore) lockTimeout() time.Duration {
	if s.LockTimeout > 0 {
		return s.LockTimeout
	}
	return defaultAppendLockTimeout
}

// Append writes one entry to the ledger in its own transaction.
// On success the entry is durably persisted and correctly chained to the
// tail as of the call; on error no partial row exists.
func (s *LedgerStore) Append(ctx context.Context, fields models.AuditFields) (*models.AuditEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, models.NewAuditWriteError(fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	entry, err := s.AppendTx(ctx, tx, fields)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, models.NewAuditWriteError(fmt.Errorf("%w: commit: %v", models.ErrStorageUnavailable, err))
	}

	return entry, nil
}

// AppendTx writes one entry to the ledger inside the caller's transaction,
// so the entry commits or rolls back together with the caller's own
// mutations. The append lock is transaction-scoped and releases when tx
// ends.
//
// All failures are reported as AuditWriteError wrapping the underlying
// cause (canonicalization, serialization timeout, or storage).
func (s *LedgerStore) AppendTx(ctx context.Context, tx pgx.Tx, fields models.AuditFields) (*models.AuditEntry, error) {
	if err := fields.Validate(); err != nil {
		return nil, models.NewAuditWriteError(fmt.Errorf("%w: %v", models.ErrCanonicalization, err))
	}

	// Hash and store the JSON round-tripped form of the details, not the
	// caller's original values: verification recomputes from the jsonb
	// read-back, and the two must be byte-identical.
	normalized, err := hashchain.NormalizeDetails(fields.Details)
	if err != nil {
		return nil, models.NewAuditWriteError(err)
	}
	fields.Details = normalized

	// Bound the advisory lock wait. lock_timeout takes an interval
	// literal, not a bind parameter; the value is a trusted integer.
	timeoutSQL := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout().Milliseconds())
	if _, err := tx.Exec(ctx, timeoutSQL); err != nil {
		return nil, models.NewAuditWriteError(fmt.Errorf("%w: setting lock timeout: %v", models.ErrStorageUnavailable, err))
	}

	// Single named lock for the whole chain, held from here to tx end.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		return nil, models.NewAuditWriteError(classifyLockError(err))
	}

	// Chain tail by insertion order, not created_at: clock skew must not
	// change linkage.
	previousHash := hashchain.GenesisHash

	err = tx.QueryRow(ctx, "SELECT record_hash FROM audit_log ORDER BY id DESC LIMIT 1").Scan(&previousHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NewAuditWriteError(fmt.Errorf("%w: reading chain tail: %v", models.ErrStorageUnavailable, err))
	}

	// Truncate to microseconds so the stored timestamptz round-trips
	// exactly when the verifier recomputes the hash.
	createdAt := time.Now().UTC().Truncate(time.Microsecond)

	recordHash, err := hashchain.ComputeHash(previousHash, fields, createdAt)
	if err != nil {
		return nil, models.NewAuditWriteError(err)
	}

	var detailsJSON []byte
	if fields.Details != nil {
		detailsJSON, err = json.Marshal(fields.Details)
		if err != nil {
			return nil, models.NewAuditWriteError(fmt.Errorf("%w: marshaling details: %v", models.ErrCanonicalization, err))
		}
	}

	entry := &models.AuditEntry{
		WorkspaceID:  fields.WorkspaceID,
		ActorUserID:  fields.ActorUserID,
		Action:       fields.Action,
		ResourceType: fields.ResourceType,
		ResourceID:   fields.ResourceID,
		Details:      fields.Details,
		IPAddress:    fields.IPAddress,
		UserAgent:    fields.UserAgent,
		CreatedAt:    createdAt,
		PreviousHash: previousHash,
		RecordHash:   recordHash,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO audit_log (
			workspace_id, actor_user_id, action, resource_type, resource_id,
			details, ip_address, user_agent, created_at, previous_hash, record_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		entry.WorkspaceID, entry.ActorUserID, entry.Action, entry.ResourceType, entry.ResourceID,
		detailsJSON, entry.IPAddress, entry.UserAgent, entry.CreatedAt, entry.PreviousHash, entry.RecordHash,
	).Scan(&entry.ID)
	if err != nil {
		return nil, models.NewAuditWriteError(fmt.Errorf("%w: inserting audit entry: %v", models.ErrStorageUnavailable, err))
	}

	return entry, nil
}

// classifyLockError maps a failed advisory lock acquisition to the error
// taxonomy: lock_timeout expiry is a serialization timeout, anything else
// is a storage failure.
func classifyLockError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%w: %v", models.ErrSerializationTimeout, err)
	}
	return fmt.Errorf("%w: acquiring append lock: %v", models.ErrStorageUnavailable, err)
}

// TableSize returns the total on-disk size of the ledger in bytes,
// reported through the health endpoint.
func (s *LedgerStore) TableSize(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var size int64

	err := s.Pool.QueryRow(ctx, "SELECT pg_total_relation_size('audit_log')").Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("reading ledger size: %w", err)
	}

	return size, nil
}
