package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// AuditService handles audit ledger operations.
type AuditService struct {
	c *Client
}

// auditQueryResponse wraps the paginated audit query response.
type auditQueryResponse struct {
	Data    []AuditEntry `json:"data"`
	HasMore bool         `json:"has_more"`
}

func auditQueryParams(opts *AuditQueryOptions) url.Values {
	params := url.Values{}
	if opts == nil {
		return params
	}
	if opts.WorkspaceID != "" {
		params.Set("workspace_id", opts.WorkspaceID)
	}
	if opts.ActorUserID != "" {
		params.Set("actor_user_id", opts.ActorUserID)
	}
	if opts.Action != "" {
		params.Set("action", opts.Action)
	}
	if opts.ResourceID != "" {
		params.Set("resource_id", opts.ResourceID)
	}
	if opts.Since != nil {
		params.Set("since", opts.Since.Format(time.RFC3339))
	}
	if opts.Until != nil {
		params.Set("until", opts.Until.Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}
	return params
}

// List returns ledger entries matching the given options, most recent
// first. Non-global callers must set WorkspaceID to a workspace they
// administer.
func (s *AuditService) List(ctx context.Context, opts *AuditQueryOptions) ([]AuditEntry, bool, error) {
	var resp auditQueryResponse
	if err := s.c.get(ctx, "/api/v1/audit", auditQueryParams(opts), &resp); err != nil {
		return nil, false, err
	}
	return resp.Data, resp.HasMore, nil
}

// GlobalList returns entries from the privileged cross-workspace view,
// with workspace names denormalized. Requires a global API key.
func (s *AuditService) GlobalList(ctx context.Context, opts *AuditQueryOptions) ([]AuditEntry, bool, error) {
	var resp auditQueryResponse
	if err := s.c.get(ctx, "/api/v1/admin/audit", auditQueryParams(opts), &resp); err != nil {
		return nil, false, err
	}
	return resp.Data, resp.HasMore, nil
}

// Verify runs the hash chain verifier. workspaceID optionally scopes which
// breaks are reported; pass "" for the whole ledger. Requires a global API
// key.
func (s *AuditService) Verify(ctx context.Context, workspaceID string) (*VerifyResponse, error) {
	params := url.Values{}
	if workspaceID != "" {
		params.Set("workspace_id", workspaceID)
	}
	var resp VerifyResponse
	if err := s.c.get(ctx, "/api/v1/audit/verify", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
