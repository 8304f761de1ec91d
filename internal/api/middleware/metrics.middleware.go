package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/dashboard-core/internal/monitoring"
)

// MetricsMiddleware collects HTTP request metrics, labelled by route
// template so dashboard ids do not explode the label space.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		monitoring.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
			time.Since(start),
			status >= 500,
		)
	}
}
