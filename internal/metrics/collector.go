// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the Prometheus instruments for the ask workflow and
// its collaborators. Registering against an explicit Registerer keeps
// tests from colliding on the global registry.
type Collector struct {
	asksTotal   *prometheus.CounterVec
	askDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	storeQueriesTotal *prometheus.CounterVec
	storeQueryDur     *prometheus.HistogramVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates and registers the instruments. A nil reg uses
// the default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.asksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asks_total",
			Help:      "Total number of answered questions by outcome",
		},
		[]string{"outcome"},
	)

	c.askDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ask_duration_seconds",
			Help:      "End-to-end ask duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.storeQueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_queries_total",
			Help:      "Total number of document store queries by leg and status",
		},
		[]string{"leg", "status"},
	)

	c.storeQueryDur = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_seconds",
			Help:      "Document store query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"leg"},
	)

	c.cacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answer_cache_hits_total",
		Help:      "Total number of answer cache hits",
	})

	c.cacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answer_cache_misses_total",
		Help:      "Total number of answer cache misses",
	})

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// ObserveAsk records one completed ask.
func (c *Collector) ObserveAsk(outcome string, d time.Duration) {
	c.asksTotal.WithLabelValues(outcome).Inc()
	c.askDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordHTTPRequest records one front-end request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStoreQuery records one document store query leg.
func (c *Collector) RecordStoreQuery(leg string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.storeQueriesTotal.WithLabelValues(leg, status).Inc()
	c.storeQueryDur.WithLabelValues(leg).Observe(duration.Seconds())
}

// RecordCacheHit records an answer cache hit.
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }

// RecordCacheMiss records an answer cache miss.
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

// statusClass buckets an HTTP status code.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
