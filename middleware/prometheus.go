package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stories-service/metrics"
)

// PrometheusMiddleware counts requests by route template and records their
// latency split by response cache outcome. Requests the cache never saw are
// labelled "none".
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		outcome := c.Writer.Header().Get(cacheHeader)
		if outcome == "" {
			outcome = "none"
		}

		metrics.HttpRequestsTotal.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), serviceName).
			Inc()
		metrics.HttpRequestDuration.
			WithLabelValues(c.Request.Method, route, outcome, serviceName).
			Observe(time.Since(start).Seconds())
	}
}
