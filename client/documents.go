package client

import (
	"context"
	"net/url"
)

// DocumentService handles document operations.
type DocumentService struct {
	c *Client
}

// Create creates a document in the given workspace.
func (s *DocumentService) Create(ctx context.Context, workspaceID string, req CreateDocumentRequest) (*Document, error) {
	var doc Document
	path := "/api/v1/workspaces/" + url.PathEscape(workspaceID) + "/documents"
	if err := s.c.post(ctx, path, req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Get fetches a single document.
func (s *DocumentService) Get(ctx context.Context, workspaceID, docID string) (*Document, error) {
	var doc Document
	path := "/api/v1/workspaces/" + url.PathEscape(workspaceID) + "/documents/" + url.PathEscape(docID)
	if err := s.c.get(ctx, path, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes a document. The deletion and its audit record commit
// together; a failed audit write fails the deletion.
func (s *DocumentService) Delete(ctx context.Context, workspaceID, docID string) error {
	path := "/api/v1/workspaces/" + url.PathEscape(workspaceID) + "/documents/" + url.PathEscape(docID)
	return s.c.del(ctx, path, nil, nil)
}
