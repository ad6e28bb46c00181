package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request, and warns about responses slower than
// slow.
func RequestLogger(logger *slog.Logger, slow time.Duration) gin.HandlerFunc {
	logger = logger.With("component", "http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.RequestURI(),
			"status", c.Writer.Status(),
			"duration", elapsed,
			"client_ip", c.ClientIP(),
		}
		if cacheState := c.Writer.Header().Get(cacheHeader); cacheState != "" {
			attrs = append(attrs, "cache", cacheState)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		if slow > 0 && elapsed > slow {
			logger.Warn("slow response", attrs...)
			return
		}
		logger.Info("request", attrs...)
	}
}
