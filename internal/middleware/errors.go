package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/traceboard/traceboard/internal/httputil"
)

// respondError writes the standard error body via httputil so middleware
// rejections look identical to handler-level ones.
func respondError(c *gin.Context, status int, code, message string) {
	httputil.RespondError(c, status, code, message)
}
