package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/procurement-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// caching, database work and the disposal lifecycle.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	disposalDecisions *prometheus.CounterVec
	decisionFailures  *prometheus.CounterVec
	requestsCreated   prometheus.Counter
	autoFlagged       prometheus.Counter
	queueSize         *prometheus.GaugeVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	disposalDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "disposal_decisions_total",
		Help: "Committed disposal decisions",
	}, []string{"source_type", "action"})

	decisionFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "disposal_decision_failures_total",
		Help: "Disposal decisions that did not commit",
	}, []string{"reason"})

	requestsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "disposal_requests_created_total",
		Help: "Manual disposal requests submitted",
	})

	autoFlagged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "disposal_auto_flagged_total",
		Help: "Assets moved to Disposal Pending by a condition update",
	})

	queueSize := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "disposal_queue_rows",
		Help: "Rows returned by the last disposal queue read",
	}, []string{"type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups, dbQueryDuration,
		disposalDecisions, decisionFailures, requestsCreated, autoFlagged, queueSize, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheLookups:      cacheLookups,
		dbQueryDuration:   dbQueryDuration,
		disposalDecisions: disposalDecisions,
		decisionFailures:  decisionFailures,
		requestsCreated:   requestsCreated,
		autoFlagged:       autoFlagged,
		queueSize:         queueSize,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordDecision counts a committed disposal decision.
func (m *MetricsService) RecordDecision(source models.DisposalType, action models.DecisionAction) {
	if m == nil {
		return
	}
	m.disposalDecisions.WithLabelValues(string(source), string(action)).Inc()
}

// RecordDecisionFailure counts a decision that was rolled back or refused.
func (m *MetricsService) RecordDecisionFailure(reason string) {
	if m == nil {
		return
	}
	m.decisionFailures.WithLabelValues(reason).Inc()
}

// RecordRequestCreated counts a stored manual request.
func (m *MetricsService) RecordRequestCreated() {
	if m == nil {
		return
	}
	m.requestsCreated.Inc()
}

// RecordAutoFlagged counts an asset entering Disposal Pending.
func (m *MetricsService) RecordAutoFlagged() {
	if m == nil {
		return
	}
	m.autoFlagged.Inc()
}

// ObserveQueueSize records the row count of a queue read.
func (m *MetricsService) ObserveQueueSize(queueType models.QueueType, rows int) {
	if m == nil {
		return
	}
	m.queueSize.WithLabelValues(string(queueType)).Set(float64(rows))
}
