// Package metrics defines the Prometheus metric collectors used by the
// indexer and the search service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DocsIndexedTotal   prometheus.Counter
	DocsFailedTotal    prometheus.Counter
	TokensKeptTotal    prometheus.Counter
	TokensDroppedTotal *prometheus.CounterVec
	IngestRunDuration  *prometheus.HistogramVec

	QueriesTotal      *prometheus.CounterVec
	QueryLatency      *prometheus.HistogramVec
	QueryResultsCount prometheus.Histogram
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg. Tests
// pass a fresh registry so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents written to the index.",
			},
		),
		DocsFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_failed_total",
				Help: "Total documents that failed ingestion.",
			},
		),
		TokensKeptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tokens_kept_total",
				Help: "Total tokens surviving the filter gates.",
			},
		),
		TokensDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokens_dropped_total",
				Help: "Total tokens dropped by the filter, by reason (alpha, length, count).",
			},
			[]string{"reason"},
		),
		IngestRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_run_duration_seconds",
				Help:    "Wall-clock duration of ingestion runs by kind (index, resources, terms).",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"kind"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queries_total",
				Help: "Total ranking queries by result type (ok, zero_result, error).",
			},
			[]string{"result_type"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "query_latency_seconds",
				Help:    "Ranking query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_results_count",
				Help:    "Number of results returned per ranking query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query-cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query-cache misses.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocsIndexedTotal,
		m.DocsFailedTotal,
		m.TokensKeptTotal,
		m.TokensDroppedTotal,
		m.IngestRunDuration,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
