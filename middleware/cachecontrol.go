package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"stories-service/cache"
)

// CacheControl tells clients and proxies how long a response may be reused.
// Only anonymous GETs of cacheable paths are public; everything else is
// marked uncacheable.
func CacheControl(rules cache.Rules) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			if !Authenticated(c) {
				if rule, ok := rules.Lookup(cache.CanonicalPath(c.Request.URL.Path)); ok {
					c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(rule.TTL.Seconds())))
					c.Next()
					return
				}
			}
		}

		c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
