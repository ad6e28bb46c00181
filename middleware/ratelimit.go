package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stories-service/metrics"
	"stories-service/ratelimit"
)

// RateLimit counts requests per client IP. When the limiter itself fails the
// request is let through.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "middleware.RateLimit")

	return func(c *gin.Context) {
		d, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		c.Header("RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		c.Header("RateLimit-Reset", strconv.Itoa(int(math.Ceil(max(0, time.Until(d.ResetAt).Seconds())))))

		if !d.Allowed {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  http.StatusTooManyRequests,
				"message": "Too many requests, please try again later.",
			})
			return
		}
		c.Next()
	}
}
