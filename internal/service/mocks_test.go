package service

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

// fakeTx satisfies pgx.Tx for combinator tests. Only Commit and Rollback
// are implemented; touching anything else panics through the nil embed.
type fakeTx struct {
	pgx.Tx

	mu         sync.Mutex
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// mockTxBeginner hands out fakeTx instances and remembers the last one.
type mockTxBeginner struct {
	beginErr error
	lastTx   *fakeTx
}

func (m *mockTxBeginner) Begin(context.Context) (pgx.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.lastTx = &fakeTx{}
	return m.lastTx, nil
}

// mockLedger records appended fields and returns configured responses.
type mockLedger struct {
	mu      sync.Mutex
	appends []models.AuditFields

	appendErr   error
	queryFn     func(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, bool, error)
	globalFn    func(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, bool, error)
	verifyFn    func(ctx context.Context, workspaceID string) ([]models.BrokenLink, error)
	tableSizeFn func(ctx context.Context) (int64, error)
}

func (m *mockLedger) record(fields models.AuditFields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends = append(m.appends, fields)
}

func (m *mockLedger) getAppends() []models.AuditFields {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AuditFields, len(m.appends))
	copy(out, m.appends)
	return out
}

func (m *mockLedger) Append(_ context.Context, fields models.AuditFields) (*models.AuditEntry, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.record(fields)
	return &models.AuditEntry{ID: int64(len(m.appends)), Action: fields.Action}, nil
}

func (m *mockLedger) AppendTx(_ context.Context, _ pgx.Tx, fields models.AuditFields) (*models.AuditEntry, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.record(fields)
	return &models.AuditEntry{ID: int64(len(m.appends)), Action: fields.Action}, nil
}

func (m *mockLedger) Query(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
	return m.queryFn(ctx, f)
}

func (m *mockLedger) QueryGlobal(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
	return m.globalFn(ctx, f)
}

func (m *mockLedger) VerifyChain(ctx context.Context, workspaceID string) ([]models.BrokenLink, error) {
	return m.verifyFn(ctx, workspaceID)
}

func (m *mockLedger) TableSize(ctx context.Context) (int64, error) {
	return m.tableSizeFn(ctx)
}

// mockMembership implements MembershipChecker and Membership.
type mockMembership struct {
	admin    bool
	member   bool
	checkErr error
	lastWsID string
	lastUser string
}

func (m *mockMembership) IsWorkspaceAdmin(_ context.Context, workspaceID, userID string) (bool, error) {
	m.lastWsID, m.lastUser = workspaceID, userID
	return m.admin, m.checkErr
}

func (m *mockMembership) IsWorkspaceMember(_ context.Context, workspaceID, userID string) (bool, error) {
	m.lastWsID, m.lastUser = workspaceID, userID
	return m.member, m.checkErr
}

// mockDocStore implements DocumentMutator.
type mockDocStore struct {
	createErr error
	deleteErr error
	getFn     func(ctx context.Context, workspaceID, docID string) (*models.Document, error)

	created []models.Document
	deleted []string
}

func (m *mockDocStore) CreateTx(_ context.Context, _ pgx.Tx, doc *models.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, *doc)
	return nil
}

func (m *mockDocStore) DeleteTx(_ context.Context, _ pgx.Tx, _, docID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, docID)
	return nil
}

func (m *mockDocStore) Get(ctx context.Context, workspaceID, docID string) (*models.Document, error) {
	return m.getFn(ctx, workspaceID, docID)
}
