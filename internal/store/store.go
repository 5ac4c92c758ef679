// Package store provides focused, single-concern data access stores for
// the traceboard audit ledger and its collaborators.
//
// Each store owns one domain (ledger, documents) and embeds shared helpers
// (Pool, logger) via the Base struct. Stores never import each other —
// shared logic lives in this file.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/dbpool"
	"github.com/traceboard/traceboard/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// beginTx starts a read-write transaction.
func (b *Base) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction.
func (b *Base) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	return tx, nil
}

// GetPrincipalByAPIKey resolves an API key to its authenticated principal.
func (b *Base) GetPrincipalByAPIKey(ctx context.Context, apiKey string) (models.Principal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	hash := sha256.Sum256([]byte(apiKey))
	keyHash := hex.EncodeToString(hash[:])

	var p models.Principal

	err := b.Pool.QueryRow(ctx,
		"SELECT user_id, global_role FROM api_keys WHERE key_hash = $1", keyHash,
	).Scan(&p.UserID, &p.Global)
	if err != nil {
		return models.Principal{}, fmt.Errorf("looking up principal by API key: %w", err)
	}

	return p, nil
}

// IsWorkspaceAdmin reports whether userID holds the admin role in the workspace.
func (b *Base) IsWorkspaceAdmin(ctx context.Context, workspaceID, userID string) (bool, error) {
	return b.hasRole(ctx, workspaceID, userID, models.RoleAdmin)
}

// IsWorkspaceMember reports whether userID belongs to the workspace in any role.
func (b *Base) IsWorkspaceMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	return b.hasRole(ctx, workspaceID, userID, "")
}

func (b *Base) hasRole(ctx context.Context, workspaceID, userID, role string) (bool, error) {
	if _, err := uuid.Parse(workspaceID); err != nil {
		return false, fmt.Errorf("invalid workspace ID format: %w", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := "SELECT role FROM workspace_members WHERE workspace_id = $1 AND user_id = $2"

	var got string

	err := b.Pool.QueryRow(ctx, query, workspaceID, userID).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking workspace membership: %w", err)
	}

	if role == "" {
		return true, nil
	}

	return got == role, nil
}
