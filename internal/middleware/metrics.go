package middleware

import (
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start).Seconds())
	}
}
