package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/middleware"
	"github.com/traceboard/traceboard/internal/models"
	"github.com/traceboard/traceboard/internal/service"
)

// getPrincipal extracts the authenticated principal from the Gin context.
func getPrincipal(c *gin.Context) (models.Principal, bool) {
	v, exists := c.Get(middleware.PrincipalKey)
	if !exists {
		respondError(c, http.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")

		return models.Principal{}, false
	}

	p, ok := v.(models.Principal)
	if !ok {
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "malformed principal")

		return models.Principal{}, false
	}

	return p, true
}

// requestMeta captures request provenance for audit entries.
func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}
		log.WithFields(fields).Info("request")
	}
}

// maxPaginationOffset caps the maximum offset for paginated queries.
const maxPaginationOffset = 100000

// parseLimit parses a limit parameter. Values above the ledger ceiling are
// silently clamped, not rejected.
func parseLimit(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return models.DefaultAuditLimit
	}

	if v > models.MaxAuditLimit {
		return models.MaxAuditLimit
	}

	return v
}

func parseOffset(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}

	if v > maxPaginationOffset {
		return maxPaginationOffset
	}

	return v
}
