package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/models"
)

// AuditHandler serves audit ledger endpoints.
type AuditHandler struct {
	svc AuditReader
	log *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(svc AuditReader, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, log: log}
}

// parseFilter reads the shared query parameters of the list endpoints.
func (h *AuditHandler) parseFilter(c *gin.Context) (models.AuditFilter, bool) {
	f := models.AuditFilter{
		WorkspaceID: c.Query("workspace_id"),
		ActorUserID: c.Query("actor_user_id"),
		Action:      c.Query("action"),
		ResourceID:  c.Query("resource_id"),
		Limit:       parseLimit(c.Query("limit")),
		Offset:      parseOffset(c.Query("offset")),
	}

	for param, dst := range map[string]**time.Time{"since": &f.CreatedAfter, "until": &f.CreatedUntil} {
		if v := c.Query(param); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid "+param+" format, use RFC3339")
				return f, false
			}
			*dst = &t
		}
	}

	return f, true
}

// List handles GET /api/v1/audit — the workspace-scoped ledger view.
func (h *AuditHandler) List(c *gin.Context) {
	caller, ok := getPrincipal(c)
	if !ok {
		return
	}

	f, ok := h.parseFilter(c)
	if !ok {
		return
	}

	entries, hasMore, err := h.svc.Query(c.Request.Context(), caller, f)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     entries,
		"has_more": hasMore,
	})
}

// ListGlobal handles GET /api/v1/admin/audit — the privileged cross-tenant
// view with denormalized workspace names.
func (h *AuditHandler) ListGlobal(c *gin.Context) {
	caller, ok := getPrincipal(c)
	if !ok {
		return
	}
	if !caller.Global {
		respondError(c, http.StatusForbidden, ErrCodeForbidden, "global audit access requires a privileged principal")
		return
	}

	f, ok := h.parseFilter(c)
	if !ok {
		return
	}

	entries, hasMore, err := h.svc.Query(c.Request.Context(), caller, f)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     entries,
		"has_more": hasMore,
	})
}

// Verify handles GET /api/v1/audit/verify — runs the chain verifier and
// enumerates breaks. An intact chain returns ok with an empty list.
func (h *AuditHandler) Verify(c *gin.Context) {
	caller, ok := getPrincipal(c)
	if !ok {
		return
	}

	breaks, err := h.svc.Verify(c.Request.Context(), caller, c.Query("workspace_id"))
	if err != nil {
		if errors.Is(err, models.ErrAccessDenied) {
			respondError(c, http.StatusForbidden, ErrCodeForbidden, "chain verification requires a privileged principal")
			return
		}
		h.log.WithError(err).Error("chain verification failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "chain verification failed")
		return
	}

	status := "ok"
	if len(breaks) > 0 {
		status = "broken"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"breaks": breaks,
	})
}

func (h *AuditHandler) respondQueryError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrAccessDenied) {
		respondError(c, http.StatusForbidden, ErrCodeForbidden, "not authorized for the requested audit scope")
		return
	}

	h.log.WithError(err).Error("failed to query audit ledger")
	respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to query audit ledger")
}
