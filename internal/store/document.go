package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/traceboard/traceboard/internal/models"
)

// DocumentStore provides data access for the documents table. Mutations
// take a caller-supplied transaction so the service layer can make them
// atomic with their audit records.
type DocumentStore struct {
	Base
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(base Base) *DocumentStore {
	return &DocumentStore{Base: base}
}

// Begin starts a read-write transaction for a document mutation.
func (s *DocumentStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.beginTx(ctx)
}

// CreateTx inserts a document inside the caller's transaction.
func (s *DocumentStore) CreateTx(ctx context.Context, tx pgx.Tx, doc *models.Document) error {
	doc.CreatedAt = time.Now().UTC()

	_, err := tx.Exec(ctx, `
		INSERT INTO documents (id, workspace_id, title, body, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.WorkspaceID, doc.Title, doc.Body, doc.CreatedBy, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	return nil
}

// DeleteTx removes a document inside the caller's transaction.
func (s *DocumentStore) DeleteTx(ctx context.Context, tx pgx.Tx, workspaceID, docID string) error {
	tag, err := tx.Exec(ctx,
		"DELETE FROM documents WHERE id = $1 AND workspace_id = $2", docID, workspaceID,
	)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDocumentNotFound
	}

	return nil
}

// Get returns a single document by workspace and id.
func (s *DocumentStore) Get(ctx context.Context, workspaceID, docID string) (*models.Document, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc models.Document

	err := s.Pool.QueryRow(ctx, `
		SELECT id, workspace_id, title, body, created_by, created_at
		FROM documents WHERE id = $1 AND workspace_id = $2`,
		docID, workspaceID,
	).Scan(&doc.ID, &doc.WorkspaceID, &doc.Title, &doc.Body, &doc.CreatedBy, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}

	return &doc, nil
}
