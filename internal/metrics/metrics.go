// Package metrics holds the Prometheus collectors for the feed pipeline.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests and one-shot CLI commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "civic_events"

// Fetch outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeStatus  = "status"
	OutcomeTimeout = "timeout"
	OutcomePanic   = "panic"
)

// Metrics groups the collectors registered for one process.
type Metrics struct {
	fetchTotal     *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	itemsExtracted *prometheus.CounterVec
	feedRuns       *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{gatherer: gatherer}
	m.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_fetch_total",
		Help:      "Upstream page fetches by source and outcome",
	}, []string{"source", "outcome"})
	m.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_fetch_duration_seconds",
		Help:      "Time spent fetching an upstream page",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
	}, []string{"source"})
	m.itemsExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_extracted_total",
		Help:      "News items kept after relevance filtering, by source",
	}, []string{"source"})
	m.feedRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_runs_total",
		Help:      "Community feed aggregations by provenance",
	}, []string{"provenance"})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Response cache lookups by result (hit, stale, miss)",
	}, []string{"result"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"route", "status"})

	reg.MustRegister(
		m.fetchTotal, m.fetchDuration, m.itemsExtracted,
		m.feedRuns, m.cacheLookups, m.httpRequests,
	)
	return m
}

// NewRegistry returns Metrics backed by a fresh private registry.
func NewRegistry() *Metrics {
	reg := prometheus.NewRegistry()
	return New(reg, reg)
}

// ObserveFetch records one upstream fetch.
func (m *Metrics) ObserveFetch(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(source, outcome).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// AddItems records n items extracted from source.
func (m *Metrics) AddItems(source string, n int) {
	if m == nil {
		return
	}
	m.itemsExtracted.WithLabelValues(source).Add(float64(n))
}

// IncFeedRun records one aggregation run.
func (m *Metrics) IncFeedRun(provenance string) {
	if m == nil {
		return
	}
	m.feedRuns.WithLabelValues(provenance).Inc()
}

// IncCache records one cache lookup.
func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// IncHTTP records one served request.
func (m *Metrics) IncHTTP(route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
