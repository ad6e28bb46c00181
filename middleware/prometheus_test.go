package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"stories-service/metrics"
)

func TestPrometheusMiddlewareUsesRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(PrometheusMiddleware("prom-test"))
	r.GET("/things/:id", func(c *gin.Context) {
		c.Header(cacheHeader, "HIT")
		c.Status(http.StatusOK)
	})

	matched := metrics.HttpRequestsTotal.WithLabelValues(http.MethodGet, "/things/:id", "200", "prom-test")
	unmatched := metrics.HttpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404", "prom-test")
	before, beforeMissing := testutil.ToFloat64(matched), testutil.ToFloat64(unmatched)

	for _, target := range []string{"/things/1", "/things/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(matched))
	assert.Equal(t, beforeMissing+1, testutil.ToFloat64(unmatched))
}
