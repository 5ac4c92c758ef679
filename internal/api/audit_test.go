package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/traceboard/traceboard/internal/api"
	"github.com/traceboard/traceboard/internal/models"
)

func TestAuditList_OK(t *testing.T) {
	t.Parallel()

	svc := &mockAuditReader{
		queryFn: func(_ context.Context, _ models.Principal, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
			if f.WorkspaceID != testWorkspaceID {
				t.Errorf("expected workspace filter %q, got %q", testWorkspaceID, f.WorkspaceID)
			}

			return []models.AuditEntry{
				{ID: 2, Action: "document.create", RecordHash: "bb", PreviousHash: "aa"},
				{ID: 1, Action: "workspace.create", RecordHash: "aa"},
			}, false, nil
		},
	}

	r := newTestRouter(memberPrincipal())
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/audit", h.List)

	w := doRequest(r, http.MethodGet, "/audit?workspace_id="+testWorkspaceID, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data    []models.AuditEntry `json:"data"`
		HasMore bool                `json:"has_more"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Data))
	}

	if resp.Data[0].ID != 2 {
		t.Errorf("expected newest entry first, got id %d", resp.Data[0].ID)
	}
}

func TestAuditList_LimitClamped(t *testing.T) {
	t.Parallel()

	var gotLimit int
	svc := &mockAuditReader{
		queryFn: func(_ context.Context, _ models.Principal, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
			gotLimit = f.Limit

			return nil, false, nil
		},
	}

	r := newTestRouter(memberPrincipal())
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/audit", h.List)

	w := doRequest(r, http.MethodGet, "/audit?workspace_id="+testWorkspaceID+"&limit=9999", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if gotLimit != models.MaxAuditLimit {
		t.Errorf("expected limit clamped to %d, got %d", models.MaxAuditLimit, gotLimit)
	}
}

func TestAuditList_DefaultLimit(t *testing.T) {
	t.Parallel()

	var gotLimit int
	svc := &mockAuditReader{
		queryFn: func(_ context.Context, _ models.Principal, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
			gotLimit = f.Limit

			return nil, false, nil
		},
	}

	r := newTestRouter(memberPrincipal())
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/audit", h.List)

	doRequest(r, http.MethodGet, "/audit?workspace_id="+testWorkspaceID, "")

	if gotLimit != models.DefaultAuditLimit {
		t.Errorf("expected default limit %d, got %d", models.DefaultAuditLimit, gotLimit)
	}
}

func TestAuditList_InvalidSince(t *testing.T) {
	t.Parallel()

	r := newTestRouter(memberPrincipal())
	h := api.NewAuditHandler(&mockAuditReader{}, testLogger())
	r.GET("/audit", h.List)

	w := doRequest(r, http.MethodGet, "/audit?since=not-a-date", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditList_TimeRangeParsed(t *testing.T) {
	t.Parallel()

	var got models.AuditFilter
	svc := &mockAuditReader{
		queryFn: func(_ context.Context, _ models.Principal, f models.AuditFilter) ([]models.AuditEntry, bool, error) {
			got = f

			return nil, false, nil
		},
	}

	r := newTestRouter(memberPrincipal())
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/audit", h.List)

	since := "2026-01-01T00:00:00Z"
	until := "2026-02-01T00:00:00Z"
	doRequest(r, http.MethodGet, "/audit?workspace_id="+testWorkspaceID+"&since="+since+"&until="+until, "")

	if got.CreatedAfter == nil || !got.CreatedAfter.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("since not parsed: %v", got.CreatedAfter)
	}

	if got.CreatedUntil == nil || !got.CreatedUntil.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("until not parsed: %v", got.CreatedUntil)
	}
}

func TestAuditList_AccessDenied(t *testing.T) {
	t.Parallel()

	svc := &mockAuditReader{
		queryFn: func(_ context.Context, _ models.Principal, _ models.AuditFilter) ([]models.AuditEntry, bool, error) {
			return nil, false, models.ErrAccessDenied
		},
	}

	r := newTestRouter(memberPrincipal())
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/audit", h.List)

	w := doRequest(r, http.MethodGet, "/audit?workspace_id="+testWorkspaceID, "")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditListGlobal_RequiresGlobalPrincipal(t *testing.T) {
	t.Parallel()

	r := newTestRouter(memberPrincipal())
	h := api.NewAuditHandler(&mockAuditReader{}, testLogger())
	r.GET("/admin/audit", h.ListGlobal)

	w := doRequest(r, http.MethodGet, "/admin/audit", "")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditListGlobal_OK(t *testing.T) {
	t.Parallel()

	svc := &mockAuditReader{
		queryFn: func(_ context.Context, caller models.Principal, _ models.AuditFilter) ([]models.AuditEntry, bool, error) {
			if !caller.Global {
				t.Error("expected a global caller")
			}

			return []models.AuditEntry{
				{ID: 1, Action: "workspace.create", WorkspaceName: "Acme"},
			}, false, nil
		},
	}

	r := newTestRouter(globalPrincipal())
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/admin/audit", h.ListGlobal)

	w := doRequest(r, http.MethodGet, "/admin/audit", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data []models.AuditEntry `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(resp.Data) != 1 || resp.Data[0].WorkspaceName != "Acme" {
		t.Errorf("expected denormalized workspace name, got %+v", resp.Data)
	}
}

func TestAuditVerify_Intact(t *testing.T) {
	t.Parallel()

	svc := &mockAuditReader{
		verifyFn: func(_ context.Context, _ models.Principal, _ string) ([]models.BrokenLink, error) {
			return nil, nil
		},
	}

	r := newTestRouter(globalPrincipal())
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/audit/verify", h.Verify)

	w := doRequest(r, http.MethodGet, "/audit/verify", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string              `json:"status"`
		Breaks []models.BrokenLink `json:"breaks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func TestAuditVerify_ReportsBreaks(t *testing.T) {
	t.Parallel()

	svc := &mockAuditReader{
		verifyFn: func(_ context.Context, _ models.Principal, workspaceID string) ([]models.BrokenLink, error) {
			if workspaceID != testWorkspaceID {
				t.Errorf("expected workspace scope %q, got %q", testWorkspaceID, workspaceID)
			}

			return []models.BrokenLink{
				{EntryID: 7, Field: "record_hash", Expected: "aa", Actual: "bb"},
			}, nil
		},
	}

	r := newTestRouter(globalPrincipal())
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/audit/verify", h.Verify)

	w := doRequest(r, http.MethodGet, "/audit/verify?workspace_id="+testWorkspaceID, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status string              `json:"status"`
		Breaks []models.BrokenLink `json:"breaks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if resp.Status != "broken" || len(resp.Breaks) != 1 {
		t.Errorf("expected one break reported, got %+v", resp)
	}
}

func TestAuditVerify_Forbidden(t *testing.T) {
	t.Parallel()

	svc := &mockAuditReader{
		verifyFn: func(_ context.Context, _ models.Principal, _ string) ([]models.BrokenLink, error) {
			return nil, models.ErrAccessDenied
		},
	}

	r := newTestRouter(memberPrincipal())
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/audit/verify", h.Verify)

	w := doRequest(r, http.MethodGet, "/audit/verify", "")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}
