package api_test

import (
	"context"

	"github.com/traceboard/traceboard/internal/models"
	"github.com/traceboard/traceboard/internal/service"
)

// mockAuditReader implements api.AuditReader for testing.
type mockAuditReader struct {
	queryFn  func(ctx context.Context, caller models.Principal, f models.AuditFilter) ([]models.AuditEntry, bool, error)
	verifyFn func(ctx context.Context, caller models.Principal, workspaceID string) ([]models.BrokenLink, error)
}

func (m *mockAuditReader) Query(ctx context.Context, caller models.Principal, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
	return m.queryFn(ctx, caller, f)
}

func (m *mockAuditReader) Verify(ctx context.Context, caller models.Principal, workspaceID string) ([]models.BrokenLink, error) {
	return m.verifyFn(ctx, caller, workspaceID)
}

// mockAuditHealth implements api.AuditHealth for testing.
type mockAuditHealth struct {
	status string
	size   int64
}

func (m *mockAuditHealth) Status() string {
	return m.status
}

func (m *mockAuditHealth) LedgerSize(context.Context) (int64, error) {
	return m.size, nil
}

// mockDocumentOps implements api.DocumentOps for testing.
type mockDocumentOps struct {
	createFn func(ctx context.Context, workspaceID string, caller models.Principal, req models.CreateDocumentRequest, meta service.RequestMeta) (*models.Document, error)
	getFn    func(ctx context.Context, workspaceID string, caller models.Principal, docID string, meta service.RequestMeta) (*models.Document, error)
	deleteFn func(ctx context.Context, workspaceID string, caller models.Principal, docID string, meta service.RequestMeta) error
}

func (m *mockDocumentOps) Create(ctx context.Context, workspaceID string, caller models.Principal, req models.CreateDocumentRequest, meta service.RequestMeta) (*models.Document, error) {
	return m.createFn(ctx, workspaceID, caller, req, meta)
}

func (m *mockDocumentOps) Get(ctx context.Context, workspaceID string, caller models.Principal, docID string, meta service.RequestMeta) (*models.Document, error) {
	return m.getFn(ctx, workspaceID, caller, docID, meta)
}

func (m *mockDocumentOps) Delete(ctx context.Context, workspaceID string, caller models.Principal, docID string, meta service.RequestMeta) error {
	return m.deleteFn(ctx, workspaceID, caller, docID, meta)
}
