package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andcoolsystems/eldraxis/pkg/metrics"
)

// unmatchedRoute labels requests that hit no route, so arbitrary paths do not
// each become a new series.
const unmatchedRoute = "unmatched"

// Metrics records request latency for each HTTP request, labelled by route
// template rather than raw path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}
