// Package httputil provides shared HTTP response helpers.
package httputil

import "github.com/gin-gonic/gin"

// RespondError aborts the request with the standard error body
// {code, message, request_id}. The request ID is omitted when the request
// never passed through the request-ID middleware.
func RespondError(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if requestID := c.GetString("request_id"); requestID != "" {
		body["request_id"] = requestID
	}

	c.AbortWithStatusJSON(status, body)
}
