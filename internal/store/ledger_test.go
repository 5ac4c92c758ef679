package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/traceboard/traceboard/internal/models"
	"github.com/traceboard/traceboard/internal/store"
)

func newTestLedger(t *testing.T) (*store.LedgerStore, string, string) {
	t.Helper()

	base, workspaceID, userID := setupTestWorkspace(t)
	return store.NewLedgerStore(base), workspaceID, userID
}

func testFields(workspaceID, userID, action string) models.AuditFields {
	return models.AuditFields{
		WorkspaceID:  &workspaceID,
		ActorUserID:  &userID,
		Action:       action,
		ResourceType: "document",
		ResourceID:   "d1",
		Details:      map[string]any{"title": "notes", "size": float64(3)},
		IPAddress:    "203.0.113.9",
		UserAgent:    "test-agent/1.0",
	}
}

func TestLedgerAppend_ChainsToTail(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	first, err := ledger.Append(ctx, testFields(workspaceID, userID, "document.create"))
	if err != nil {
		t.Fatalf("first Append: %v", err)
	}

	second, err := ledger.Append(ctx, testFields(workspaceID, userID, "document.delete"))
	if err != nil {
		t.Fatalf("second Append: %v", err)
	}

	if len(first.RecordHash) != 64 || len(second.RecordHash) != 64 {
		t.Errorf("record hashes are not 64 hex chars: %q, %q", first.RecordHash, second.RecordHash)
	}
	if second.PreviousHash != first.RecordHash {
		t.Errorf("second.previous_hash = %q, want first.record_hash %q", second.PreviousHash, first.RecordHash)
	}
	if second.RecordHash == first.RecordHash {
		t.Error("consecutive entries produced identical record hashes")
	}
	if second.ID <= first.ID {
		t.Errorf("ids not monotonic: %d then %d", first.ID, second.ID)
	}
}

func TestLedgerAppend_Concurrent(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	const appenders = 5

	var wg sync.WaitGroup
	errs := make([]error, appenders)

	for i := 0; i < appenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Append(ctx, testFields(workspaceID, userID, fmt.Sprintf("concurrent.action.%d", i)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent append %d: %v", i, err)
		}
	}

	entries, _, err := ledger.Query(ctx, models.AuditFilter{WorkspaceID: workspaceID})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != appenders {
		t.Fatalf("entries = %d, want %d", len(entries), appenders)
	}

	seen := make(map[string]bool, appenders)
	for _, e := range entries {
		if seen[e.RecordHash] {
			t.Errorf("duplicate record hash %q", e.RecordHash)
		}
		seen[e.RecordHash] = true
	}

	breaks, err := ledger.VerifyChain(ctx, "")
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if len(breaks) != 0 {
		t.Errorf("chain broken after concurrent appends: %+v", breaks)
	}
}

func TestLedgerAppend_RejectsMissingAction(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)

	f := testFields(workspaceID, userID, "")
	_, err := ledger.Append(context.Background(), f)

	var writeErr *models.AuditWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected AuditWriteError, got %v", err)
	}
	if !errors.Is(err, models.ErrCanonicalization) {
		t.Errorf("expected ErrCanonicalization in chain, got %v", err)
	}
}

func TestVerifyChain_DetectsTamper(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	entry, err := ledger.Append(ctx, testFields(workspaceID, userID, "document.create"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Mutate a covered field through the break-glass path, then restore it
	// so later tests see an intact chain again.
	tamper := func(action string) {
		err := ledger.WithMaintenanceBypass(ctx, "test-operator", "tamper detection test", func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE audit_log SET action = $1 WHERE id = $2", action, entry.ID)
			return err
		})
		if err != nil {
			t.Fatalf("maintenance bypass: %v", err)
		}
	}

	tamper("document.delete")
	t.Cleanup(func() { tamper("document.create") })

	breaks, err := ledger.VerifyChain(ctx, "")
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}

	var found bool
	for _, b := range breaks {
		if b.EntryID == entry.ID && b.Field == "record_hash" {
			found = true
		}
	}
	if !found {
		t.Errorf("tampered entry %d not reported, breaks: %+v", entry.ID, breaks)
	}

	// Workspace scoping filters reporting only: a scope that excludes the
	// tampered entry hides the break from that view.
	otherScope, err := ledger.VerifyChain(ctx, "00000000-0000-0000-0000-00000000ffff")
	if err != nil {
		t.Fatalf("VerifyChain scoped: %v", err)
	}
	for _, b := range otherScope {
		if b.EntryID == entry.ID {
			t.Error("break reported outside its workspace scope")
		}
	}
}

func TestAuditLog_UpdateRejected(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	entry, err := ledger.Append(ctx, testFields(workspaceID, userID, "document.create"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, err = ledger.Pool.Exec(ctx, "UPDATE audit_log SET action = 'forged' WHERE id = $1", entry.ID)
	if err == nil {
		t.Fatal("UPDATE on audit_log succeeded, expected trigger rejection")
	}

	var action string
	if err := ledger.Pool.QueryRow(ctx, "SELECT action FROM audit_log WHERE id = $1", entry.ID).Scan(&action); err != nil {
		t.Fatalf("re-reading entry: %v", err)
	}
	if action != "document.create" {
		t.Errorf("action = %q after rejected update, want original", action)
	}
}

func TestAuditLog_DeleteRejected(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	entry, err := ledger.Append(ctx, testFields(workspaceID, userID, "document.create"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, err = ledger.Pool.Exec(ctx, "DELETE FROM audit_log WHERE id = $1", entry.ID)
	if err == nil {
		t.Fatal("DELETE on audit_log succeeded, expected trigger rejection")
	}

	var count int
	if err := ledger.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log WHERE id = $1", entry.ID).Scan(&count); err != nil {
		t.Fatalf("re-counting entry: %v", err)
	}
	if count != 1 {
		t.Errorf("entry count = %d after rejected delete, want 1", count)
	}
}

func TestLedgerQuery_FilterValuesNotExecuted(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Append(ctx, testFields(workspaceID, userID, "document.create")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	hostile := "'; DROP TABLE audit_log;--"
	entries, _, err := ledger.Query(ctx, models.AuditFilter{WorkspaceID: workspaceID, Action: hostile})
	if err != nil {
		t.Fatalf("Query with hostile filter: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("hostile filter matched %d entries, want 0", len(entries))
	}

	// The table is still there and still queryable.
	var count int64
	if err := ledger.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&count); err != nil {
		t.Fatalf("audit_log no longer queryable: %v", err)
	}
	if count == 0 {
		t.Error("audit_log is empty after hostile filter query")
	}
}

func TestLedgerQuery_PaginationAndOrder(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ledger.Append(ctx, testFields(workspaceID, userID, fmt.Sprintf("page.action.%d", i))); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	entries, hasMore, err := ledger.Query(ctx, models.AuditFilter{WorkspaceID: workspaceID, Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if !hasMore {
		t.Error("hasMore = false with a third entry present")
	}
	if entries[0].ID < entries[1].ID {
		t.Error("entries not in reverse chain order")
	}
	if entries[0].Action != "page.action.2" {
		t.Errorf("newest entry action = %q, want page.action.2", entries[0].Action)
	}

	// Second page.
	entries, _, err = ledger.Query(ctx, models.AuditFilter{WorkspaceID: workspaceID, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Query page 2: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "page.action.0" {
		t.Errorf("unexpected second page: %+v", entries)
	}
}

func TestLedgerQueryGlobal_DenormalizesWorkspaceName(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Append(ctx, testFields(workspaceID, userID, "document.create")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, _, err := ledger.QueryGlobal(ctx, models.AuditFilter{WorkspaceID: workspaceID})
	if err != nil {
		t.Fatalf("QueryGlobal: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no entries returned")
	}
	if entries[0].WorkspaceName == "" {
		t.Error("global view entry is missing the workspace name")
	}

	// The workspace-scoped view never carries the name.
	scoped, _, err := ledger.Query(ctx, models.AuditFilter{WorkspaceID: workspaceID})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if scoped[0].WorkspaceName != "" {
		t.Error("scoped view unexpectedly carries the workspace name")
	}
}

func TestLedgerQuery_DetailsRoundTrip(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	f := testFields(workspaceID, userID, "document.create")
	f.Details = map[string]any{"nested": map[string]any{"k": "v"}, "n": float64(42)}

	if _, err := ledger.Append(ctx, f); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, _, err := ledger.Query(ctx, models.AuditFilter{WorkspaceID: workspaceID})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	got := entries[0].Details
	if got["n"] != float64(42) {
		t.Errorf("details n = %v, want 42", got["n"])
	}
	nested, ok := got["nested"].(map[string]any)
	if !ok || nested["k"] != "v" {
		t.Errorf("nested details = %v", got["nested"])
	}
}

func TestLedgerAppend_LargeIntegerDetailsVerify(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	// 2^53+1 does not survive a float64 round trip. The writer must hash
	// the same representation verification later decodes from jsonb, or
	// this untampered entry would be reported as broken forever.
	f := testFields(workspaceID, userID, "document.create")
	f.Details = map[string]any{"seq": int64(9007199254740993), "bytes": int64(1) << 60}

	entry, err := ledger.Append(ctx, f)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	breaks, err := ledger.VerifyChain(ctx, "")
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	for _, b := range breaks {
		if b.EntryID == entry.ID {
			t.Fatalf("untampered entry %d reported broken: %+v", entry.ID, b)
		}
	}

	// The stored form is what the round trip produces, not the raw int64.
	entries, _, err := ledger.Query(ctx, models.AuditFilter{WorkspaceID: workspaceID, Action: "document.create"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := entries[0].Details["seq"]; got != float64(9007199254740992) {
		t.Errorf("details seq = %v (%T), want round-tripped float64", got, got)
	}
}

func TestLedgerTableSize(t *testing.T) {
	ledger, workspaceID, userID := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Append(ctx, testFields(workspaceID, userID, "document.create")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	size, err := ledger.TableSize(ctx)
	if err != nil {
		t.Fatalf("TableSize: %v", err)
	}
	if size <= 0 {
		t.Errorf("table size = %d, want > 0", size)
	}
}

func TestWithMaintenanceBypass_RequiresOperatorAndReason(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	err := ledger.WithMaintenanceBypass(context.Background(), "", "reason", func(pgx.Tx) error { return nil })
	if err == nil {
		t.Error("expected error with empty operator")
	}

	err = ledger.WithMaintenanceBypass(context.Background(), "op", "", func(pgx.Tx) error { return nil })
	if err == nil {
		t.Error("expected error with empty reason")
	}
}
