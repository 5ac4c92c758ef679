package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// WithMaintenanceBypass runs fn in a transaction with the storage-level
// append-only guard disabled for that transaction only. This is the
// break-glass path for operator maintenance; it is never reachable from
// request handling, and every use is logged with the operator and reason.
func (s *LedgerStore) WithMaintenanceBypass(ctx context.Context, operator, reason string, fn func(pgx.Tx) error) error {
	if operator == "" || reason == "" {
		return fmt.Errorf("maintenance bypass requires an operator and a reason")
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	// Transaction-local GUC: the guard trigger honors it only for this tx.
	if _, err := tx.Exec(ctx, "SELECT set_config('traceboard.audit_maintenance', 'on', true)"); err != nil {
		return fmt.Errorf("enabling maintenance bypass: %w", err)
	}

	s.Log.WithFields(logrus.Fields{
		"operator": operator,
		"reason":   reason,
	}).Warn("audit ledger maintenance bypass enabled")

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
