package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/models"
)

// DocumentHandler serves the document endpoints. Document mutations run
// through the critical-path audit contract, so a broken ledger write
// surfaces here as a failed mutation.
type DocumentHandler struct {
	svc DocumentOps
	log *logrus.Logger
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(svc DocumentOps, log *logrus.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, log: log}
}

// Create handles POST /api/v1/workspaces/:workspace_id/documents.
func (h *DocumentHandler) Create(c *gin.Context) {
	caller, ok := getPrincipal(c)
	if !ok {
		return
	}

	var req models.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	doc, err := h.svc.Create(c.Request.Context(), c.Param("workspace_id"), caller, req, requestMeta(c))
	if err != nil {
		h.respondDocError(c, err, "failed to create document")
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// Get handles GET /api/v1/workspaces/:workspace_id/documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	caller, ok := getPrincipal(c)
	if !ok {
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), c.Param("workspace_id"), caller, c.Param("id"), requestMeta(c))
	if err != nil {
		h.respondDocError(c, err, "failed to fetch document")
		return
	}

	c.JSON(http.StatusOK, doc)
}

// Delete handles DELETE /api/v1/workspaces/:workspace_id/documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	caller, ok := getPrincipal(c)
	if !ok {
		return
	}

	err := h.svc.Delete(c.Request.Context(), c.Param("workspace_id"), caller, c.Param("id"), requestMeta(c))
	if err != nil {
		h.respondDocError(c, err, "failed to delete document")
		return
	}

	c.Status(http.StatusNoContent)
}

// respondDocError maps service errors onto API responses. An audit write
// failure is reported as the business operation's own failure; the caller
// is not told the audit subsystem was the cause.
func (h *DocumentHandler) respondDocError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
	case errors.Is(err, models.ErrAccessDenied):
		respondError(c, http.StatusForbidden, ErrCodeForbidden, "not a member of this workspace")
	case errors.Is(err, models.ErrMissingTitle):
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	default:
		h.log.WithError(err).Error(message)
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, message)
	}
}
