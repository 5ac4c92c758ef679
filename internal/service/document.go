package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/models"
)

// DocumentMutator is the data-access interface DocumentService depends on.
type DocumentMutator interface {
	CreateTx(ctx context.Context, tx pgx.Tx, doc *models.Document) error
	DeleteTx(ctx context.Context, tx pgx.Tx, workspaceID, docID string) error
	Get(ctx context.Context, workspaceID, docID string) (*models.Document, error)
}

// RequestMeta carries request provenance into audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Membership resolves workspace membership for document access control.
type Membership interface {
	IsWorkspaceMember(ctx context.Context, workspaceID, userID string) (bool, error)
}

// DocumentService runs document mutations through the critical-path audit
// contract: creates and deletes are Critical (atomic with their audit
// record), views are Informational (best-effort access logging).
type DocumentService struct {
	docs    DocumentMutator
	members Membership
	audit   *AuditService
	log     *logrus.Logger
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(docs DocumentMutator, members Membership, audit *AuditService, log *logrus.Logger) *DocumentService {
	return &DocumentService{docs: docs, members: members, audit: audit, log: log}
}

// requireMember refuses callers that do not belong to the workspace.
func (s *DocumentService) requireMember(ctx context.Context, workspaceID string, caller models.Principal) error {
	if caller.Global {
		return nil
	}
	member, err := s.members.IsWorkspaceMember(ctx, workspaceID, caller.UserID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a workspace member", models.ErrAccessDenied)
	}
	return nil
}

// Create inserts a document and its audit record as one unit of work.
func (s *DocumentService) Create(ctx context.Context, workspaceID string, caller models.Principal, req models.CreateDocumentRequest, meta RequestMeta) (*models.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, workspaceID, caller); err != nil {
		return nil, err
	}
	actorID := caller.UserID

	doc := &models.Document{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		Title:       req.Title,
		Body:        req.Body,
		CreatedBy:   actorID,
	}

	fields := models.AuditFields{
		WorkspaceID:  &workspaceID,
		ActorUserID:  &actorID,
		Action:       "document.create",
		ResourceType: "document",
		ResourceID:   doc.ID,
		Details:      map[string]any{"title": req.Title},
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}

	err := s.audit.WithAudit(ctx, Critical, fields, func(tx pgx.Tx) error {
		return s.docs.CreateTx(ctx, tx, doc)
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// Delete removes a document and its audit record as one unit of work. If
// the audit write fails, the document remains.
func (s *DocumentService) Delete(ctx context.Context, workspaceID string, caller models.Principal, docID string, meta RequestMeta) error {
	if err := s.requireMember(ctx, workspaceID, caller); err != nil {
		return err
	}
	actorID := caller.UserID

	fields := models.AuditFields{
		WorkspaceID:  &workspaceID,
		ActorUserID:  &actorID,
		Action:       "document.delete",
		ResourceType: "document",
		ResourceID:   docID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}

	return s.audit.WithAudit(ctx, Critical, fields, func(tx pgx.Tx) error {
		return s.docs.DeleteTx(ctx, tx, workspaceID, docID)
	})
}

// Get fetches a document and logs the access best-effort.
func (s *DocumentService) Get(ctx context.Context, workspaceID string, caller models.Principal, docID string, meta RequestMeta) (*models.Document, error) {
	if err := s.requireMember(ctx, workspaceID, caller); err != nil {
		return nil, err
	}
	actorID := caller.UserID

	doc, err := s.docs.Get(ctx, workspaceID, docID)
	if err != nil {
		return nil, err
	}

	fields := models.AuditFields{
		WorkspaceID:  &workspaceID,
		ActorUserID:  &actorID,
		Action:       "document.view",
		ResourceType: "document",
		ResourceID:   docID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if err := s.audit.Record(ctx, Informational, fields); err != nil {
		return nil, fmt.Errorf("recording view: %w", err)
	}

	return doc, nil
}
