package api

import (
	"context"

	"github.com/traceboard/traceboard/internal/models"
	"github.com/traceboard/traceboard/internal/service"
)

// AuditReader defines the ledger operations used by AuditHandler.
type AuditReader interface {
	Query(ctx context.Context, caller models.Principal, f models.AuditFilter) ([]models.AuditEntry, bool, error)
	Verify(ctx context.Context, caller models.Principal, workspaceID string) ([]models.BrokenLink, error)
}

// AuditHealth is the subsystem health surface used by HealthHandler.
type AuditHealth interface {
	Status() string
	LedgerSize(ctx context.Context) (int64, error)
}

// DocumentOps defines the document operations used by DocumentHandler.
type DocumentOps interface {
	Create(ctx context.Context, workspaceID string, caller models.Principal, req models.CreateDocumentRequest, meta service.RequestMeta) (*models.Document, error)
	Get(ctx context.Context, workspaceID string, caller models.Principal, docID string, meta service.RequestMeta) (*models.Document, error)
	Delete(ctx context.Context, workspaceID string, caller models.Principal, docID string, meta service.RequestMeta) error
}
