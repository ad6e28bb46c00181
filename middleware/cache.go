package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stories-service/cache"
	"stories-service/metrics"
)

// cacheHeader reports HIT or MISS on responses the cache handled.
const cacheHeader = "X-Cache"

// ResponseStore is the part of cache.Store the response cache needs.
type ResponseStore interface {
	Lookup(key string) (cache.Entry, bool)
	Put(key string, e cache.Entry, ttl time.Duration)
}

// ResponseCache serves anonymous GET requests for paths covered by rules from
// store, and stores successful responses on a miss. Requests carrying an
// identity bypass it. Cache failures are logged and the request proceeds
// uncached.
func ResponseCache(store ResponseStore, rules cache.Rules, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "middleware.ResponseCache")

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		if Authenticated(c) {
			c.Next()
			return
		}
		key := cache.Key(c.Request.URL)
		rule, ok := rules.Lookup(cache.CanonicalPath(c.Request.URL.Path))
		if !ok {
			c.Next()
			return
		}

		entry, hit := lookup(store, key, logger)
		if hit {
			metrics.CacheLookups.WithLabelValues(rule.Name, "hit").Inc()
			c.Header(cacheHeader, "HIT")
			c.Data(entry.Status, entry.ContentType, entry.Payload)
			c.Abort()
			return
		}

		metrics.CacheLookups.WithLabelValues(rule.Name, "miss").Inc()
		c.Header(cacheHeader, "MISS")

		w := &teeWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= http.StatusBadRequest || c.Request.Context().Err() != nil {
			return
		}
		put(store, key, cache.Entry{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Payload:     bytes.Clone(w.body.Bytes()),
		}, rule.TTL, logger)
	}
}

func lookup(store ResponseStore, key string, logger *slog.Logger) (e cache.Entry, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cache lookup failed", "key", key, "panic", r)
			e, ok = cache.Entry{}, false
		}
	}()
	return store.Lookup(key)
}

func put(store ResponseStore, key string, e cache.Entry, ttl time.Duration, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cache store failed", "key", key, "panic", r)
		}
	}()
	store.Put(key, e, ttl)
}

// teeWriter keeps a copy of the response body.
type teeWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
