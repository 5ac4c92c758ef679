package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/models"
)

// buildLedgerFilter builds a WHERE clause and args from an AuditFilter.
// Every value is bound as a positional parameter; filter strings are never
// interpolated into the query text.
func buildLedgerFilter(f models.AuditFilter) (where string, args []any, nextArg int) {
	var conditions []string
	argIdx := 1

	if f.WorkspaceID != "" {
		conditions = append(conditions, "a.workspace_id = $"+strconv.Itoa(argIdx))
		args = append(args, f.WorkspaceID)
		argIdx++
	}
	if f.ActorUserID != "" {
		conditions = append(conditions, "a.actor_user_id = $"+strconv.Itoa(argIdx))
		args = append(args, f.ActorUserID)
		argIdx++
	}
	if f.Action != "" {
		conditions = append(conditions, "a.action = $"+strconv.Itoa(argIdx))
		args = append(args, f.Action)
		argIdx++
	}
	if f.ResourceID != "" {
		conditions = append(conditions, "a.resource_id = $"+strconv.Itoa(argIdx))
		args = append(args, f.ResourceID)
		argIdx++
	}
	if f.CreatedAfter != nil {
		conditions = append(conditions, "a.created_at >= $"+strconv.Itoa(argIdx))
		args = append(args, *f.CreatedAfter)
		argIdx++
	}
	if f.CreatedUntil != nil {
		conditions = append(conditions, "a.created_at <= $"+strconv.Itoa(argIdx))
		args = append(args, *f.CreatedUntil)
		argIdx++
	}

	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	return where, args, argIdx
}

// Query returns ledger entries matching the given filters in reverse chain
// order (most recent first). Returns entries, a hasMore flag, and any error.
func (s *LedgerStore) Query(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
	return s.query(ctx, f, false)
}

// QueryGlobal is the privileged cross-tenant variant of Query: no implicit
// workspace restriction, and each entry carries the denormalized workspace
// display name.
func (s *LedgerStore) QueryGlobal(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
	return s.query(ctx, f, true)
}

func (s *LedgerStore) query(ctx context.Context, f models.AuditFilter, global bool) ([]models.AuditEntry, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	where, args, argIdx := buildLedgerFilter(f)
	limit := f.EffectiveLimit()

	columns := `a.id, a.workspace_id, a.actor_user_id, a.action, a.resource_type, a.resource_id,
		a.details, a.ip_address, a.user_agent, a.created_at, a.previous_hash, a.record_hash`
	join := ""
	if global {
		columns += ", COALESCE(w.name, '')"
		join = "LEFT JOIN workspaces w ON w.id = a.workspace_id"
	}

	// Reverse chain order = descending id, not created_at: insertion
	// order is the ledger's one total order.
	query := fmt.Sprintf(
		"SELECT %s FROM audit_log a %s %s ORDER BY a.id DESC LIMIT $%d OFFSET $%d",
		columns, join, where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, f.Offset)

	entries, err := scanLedgerRows(ctx, tx, query, args, global, s.Log)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

// scanLedgerRows executes a query and scans audit entries from the result.
func scanLedgerRows(ctx context.Context, tx pgx.Tx, query string, args []any, global bool, log *logrus.Logger) ([]models.AuditEntry, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		e, err := scanLedgerRow(rows, global, log)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit ledger rows: %w", err)
	}

	return entries, nil
}

// scanLedgerRow scans one audit_log row. When global is true the query
// includes the trailing workspace name column.
func scanLedgerRow(rows pgx.Rows, global bool, log *logrus.Logger) (*models.AuditEntry, error) {
	var e models.AuditEntry
	var detailsJSON []byte

	dest := []any{
		&e.ID, &e.WorkspaceID, &e.ActorUserID, &e.Action, &e.ResourceType, &e.ResourceID,
		&detailsJSON, &e.IPAddress, &e.UserAgent, &e.CreatedAt, &e.PreviousHash, &e.RecordHash,
	}
	if global {
		dest = append(dest, &e.WorkspaceName)
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning audit entry: %w", err)
	}

	if detailsJSON != nil {
		if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
			log.WithError(err).Warn("failed to unmarshal audit details")
		}
	}

	return &e, nil
}
