package monitoring

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// GinMiddleware records request counts and durations per route template,
// so /users/:username is one series no matter how many users exist.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if path == "/metrics" {
			c.Next()
			return
		}

		timer := prometheus.NewTimer(HttpRequestDuration.WithLabelValues(path))
		ActiveConnections.Inc()

		c.Next()

		timer.ObserveDuration()
		ActiveConnections.Dec()
		HttpRequestsTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
