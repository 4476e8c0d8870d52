package service

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "discussion_api"

// MetricsService owns a private Prometheus registry for HTTP traffic, thread cache,
// repository queries and discussion mutations. A nil *MetricsService is a no-op.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec

	cacheLookups *prometheus.CounterVec
	cacheLatency prometheus.Histogram
	cacheWrites  prometheus.Histogram
	cacheHits    atomic.Uint64
	cacheTotal   atomic.Uint64

	dbQueries *prometheus.HistogramVec
	mutations *prometheus.CounterVec
}

// NewMetricsService builds and registers every collector.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route template.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	m.httpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route template and status.",
	}, []string{"method", "route", "status"})

	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "thread_cache",
		Name:      "lookups_total",
		Help:      "Thread cache lookups by result.",
	}, []string{"result"})
	m.cacheLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "thread_cache",
		Name:      "lookup_seconds",
		Help:      "Thread cache lookup latency.",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
	})
	m.cacheWrites = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "thread_cache",
		Name:      "write_seconds",
		Help:      "Thread cache write latency.",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
	})
	hitRatio := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "thread_cache",
		Name:      "hit_ratio",
		Help:      "Share of thread cache lookups served from cache since start.",
	}, m.cacheHitRatio)

	m.dbQueries = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Repository query latency by query label.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query"})

	m.mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "discussion",
		Name:      "mutations_total",
		Help:      "Replies, edits and deletes by outcome.",
	}, []string{"operation", "outcome"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpDuration, m.httpTotal,
		m.cacheLookups, m.cacheLatency, m.cacheWrites, hitRatio,
		m.dbQueries, m.mutations,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one finished request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, route, code).Inc()
}

// RecordCacheOperation records a thread cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	m.cacheTotal.Add(1)
	if hit {
		m.cacheHits.Add(1)
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveCacheWrite records a thread cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(duration.Seconds())
}

// ObserveDBQuery records a labelled repository query.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueries.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordDiscussionMutation counts a reply, edit or delete attempt by its outcome.
func (m *MetricsService) RecordDiscussionMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

func (m *MetricsService) cacheHitRatio() float64 {
	total := m.cacheTotal.Load()
	if total == 0 {
		return 0
	}
	return float64(m.cacheHits.Load()) / float64(total)
}
