package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"stories-service/cache"
	"stories-service/model"
)

const categoriesKey = "stories.touchedCategories"

type Invalidator interface {
	Invalidate(m cache.Matcher) int
}

// Broadcaster forwards invalidations to other replicas.
type Broadcaster interface {
	Broadcast(keys cache.KeySet)
}

// MarkCategory records that the current write affects the listing of cat.
func MarkCategory(c *gin.Context, cat model.Category) {
	if cat == "" {
		return
	}
	cats, _ := c.Get(categoriesKey)
	list, _ := cats.([]model.Category)
	c.Set(categoriesKey, append(list, cat))
}

func markedCategories(c *gin.Context) []model.Category {
	cats, _ := c.Get(categoriesKey)
	list, _ := cats.([]model.Category)
	return list
}

// InvalidationKeys returns the cached responses made stale by a write to
// path. base is the prefix cached routes live under; writes through the
// unprefixed routes invalidate the same keys.
func InvalidationKeys(base, path string, categories []model.Category) cache.KeySet {
	path = cache.CanonicalPath(path)
	if !strings.HasPrefix(path, base+"/") {
		path = base + path
	}
	posts := base + "/posts"

	var keys cache.KeySet
	keys.AddResource(posts)
	keys.AddPrefix(posts + "/popular")
	if id, ok := cache.PostIDFromPath(base, path); ok {
		keys.AddResource(posts + "/" + id)
	}
	for _, cat := range categories {
		keys.AddPrefix(posts + "/category/" + string(cat))
	}
	return keys
}

// InvalidatePosts drops cached post responses after a successful write. The
// invalidation runs before the first byte of the response is written, so a
// client that sees the response cannot read a stale entry afterwards.
// peers may be nil.
func InvalidatePosts(store Invalidator, base string, peers Broadcaster, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "middleware.InvalidatePosts")

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		w := &invalidatingWriter{ResponseWriter: c.Writer}
		w.invalidate = func() {
			status := w.ResponseWriter.Status()
			if status < http.StatusOK || status >= http.StatusMultipleChoices {
				return
			}

			keys := InvalidationKeys(base, c.Request.URL.Path, markedCategories(c))
			removed := invalidate(store, keys, logger)
			logger.Debug("invalidated cached posts", "path", c.Request.URL.Path, "removed", removed)
			if peers != nil {
				peers.Broadcast(keys)
			}
		}
		c.Writer = w
		c.Next()

		// handlers that write no body still need the invalidation
		w.once.Do(w.invalidate)
	}
}

func invalidate(store Invalidator, keys cache.KeySet, logger *slog.Logger) (n int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cache invalidation failed", "panic", r)
		}
	}()
	return store.Invalidate(keys.Matcher())
}

// invalidatingWriter runs invalidate once, right before the response starts.
type invalidatingWriter struct {
	gin.ResponseWriter
	once       sync.Once
	invalidate func()
}

func (w *invalidatingWriter) before() {
	w.once.Do(w.invalidate)
}

func (w *invalidatingWriter) WriteHeaderNow() {
	w.before()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *invalidatingWriter) Write(b []byte) (int, error) {
	w.before()
	return w.ResponseWriter.Write(b)
}

func (w *invalidatingWriter) WriteString(s string) (int, error) {
	w.before()
	return w.ResponseWriter.WriteString(s)
}

func (w *invalidatingWriter) Flush() {
	w.before()
	w.ResponseWriter.Flush()
}
