package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code", "service"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, split by response cache outcome",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "cache", "service"},
	)

	// Response cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_lookups_total",
			Help: "Response cache lookups by rule and result",
		},
		[]string{"rule", "result"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_evictions_total",
			Help: "Entries removed from the response cache by reason",
		},
		[]string{"reason"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_entries",
			Help: "Number of entries currently held by the response cache",
		},
	)

	// Ranking metrics
	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "popular_ranking_duration_seconds",
			Help:    "Time spent ranking popular posts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"window"},
	)

	BackfilledPosts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popular_backfilled_posts_total",
			Help: "Recent posts added to short popularity rankings",
		},
	)

	// Database metrics
	MongoOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongo_operations_total",
			Help: "Total number of MongoDB operations",
		},
		[]string{"operation", "collection", "status"},
	)

	MongoOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mongo_operation_duration_seconds",
			Help:    "MongoDB operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	// Peer invalidation messages
	InvalidationMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidation_messages_total",
			Help: "Cache invalidation messages exchanged with peers",
		},
		[]string{"direction", "status"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// Application health metrics
	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "application_info",
			Help: "Application information",
		},
		[]string{"service", "version", "environment"},
	)
)

// Initialize metrics with default values
func Init(serviceName, version, environment string) {
	ApplicationInfo.WithLabelValues(serviceName, version, environment).Set(1)
}

// ObserveMongo records one finished operation started at start. A non-nil err
// counts it as failed; callers pass nil for expected misses like not found.
func ObserveMongo(operation, collection string, start time.Time, err error) {
	status := "done"
	if err != nil {
		status = "error"
	}
	MongoOperationDuration.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	MongoOperationsTotal.WithLabelValues(operation, collection, status).Inc()
}
