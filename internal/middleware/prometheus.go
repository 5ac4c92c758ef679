package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/traceboard/traceboard/internal/metrics"
)

// PrometheusMiddleware records per-route request counts and latency.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Label by route pattern, never the raw path: audit queries carry
		// workspace IDs in the URL and would explode the cardinality.
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}
