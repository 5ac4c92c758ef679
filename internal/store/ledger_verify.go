package store

import (
	"context"
	"fmt"

	"github.com/traceboard/traceboard/internal/hashchain"
	"github.com/traceboard/traceboard/internal/models"
)

// VerifyChain walks the whole ledger in ascending chain order, recomputes
// every hash, and returns the breaks found. An empty result means every
// entry is provably unmodified and correctly linked.
//
// workspaceID optionally restricts which breaks are *reported*; the walk
// itself is always global, and every entry is validated against its true
// global predecessor. Filtering the walk instead would let a break hide
// behind another tenant's entries.
//
// Read-only and lock-free: concurrent appends extend the chain past the
// scan's snapshot but never invalidate what it already examined.
func (s *LedgerStore) VerifyChain(ctx context.Context, workspaceID string) ([]models.BrokenLink, error) {
	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	rows, err := tx.Query(ctx, `
		SELECT a.id, a.workspace_id, a.actor_user_id, a.action, a.resource_type, a.resource_id,
			a.details, a.ip_address, a.user_agent, a.created_at, a.previous_hash, a.record_hash
		FROM audit_log a
		ORDER BY a.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("streaming ledger for verification: %w", err)
	}
	defer rows.Close()

	var breaks []models.BrokenLink

	previousHash := hashchain.GenesisHash
	for rows.Next() {
		e, err := scanLedgerRow(rows, false, s.Log)
		if err != nil {
			return nil, err
		}

		entryBreaks := hashchain.CheckEntry(e, previousHash)
		if workspaceID == "" || (e.WorkspaceID != nil && *e.WorkspaceID == workspaceID) {
			breaks = append(breaks, entryBreaks...)
		}

		previousHash = e.RecordHash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger during verification: %w", err)
	}

	return breaks, nil
}
