// Package metrics defines the Prometheus collectors for the search core and
// exposes an HTTP handler for scraping.
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
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	AutocompleteTotal    *prometheus.CounterVec
	AutocompleteLatency  prometheus.Histogram
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	CacheEvictionsTotal  *prometheus.CounterVec
	DocsIndexedTotal     prometheus.Counter
	DocsDeletedTotal     prometheus.Counter
	IngestErrorsTotal    *prometheus.CounterVec
	IndexDocuments       prometheus.Gauge
	IndexTerms           prometheus.Gauge
	TrieTerms            prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer.(*prometheus.Registry))
}

// NewWithRegistry registers the collectors with reg, so tests can use a fresh
// registry per case.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
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
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		AutocompleteTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autocomplete_requests_total",
				Help: "Total autocomplete requests by result type (hit, miss, empty).",
			},
			[]string{"result_type"},
		),
		AutocompleteLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "autocomplete_latency_seconds",
				Help:    "Autocomplete latency in seconds.",
				Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits by cache.",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses by cache.",
			},
			[]string{"cache"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_evictions_total",
				Help: "Entries evicted to respect cache capacity, by cache.",
			},
			[]string{"cache"},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents ingested (including re-ingests).",
			},
		),
		DocsDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_deleted_total",
				Help: "Total documents deleted from the index.",
			},
		),
		IngestErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_errors_total",
				Help: "Ingest and delete failures by kind.",
			},
			[]string{"kind"},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Number of documents in the inverted index.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_distinct_terms",
				Help: "Number of distinct terms in the inverted index.",
			},
		),
		TrieTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "autocomplete_trie_terms",
				Help: "Number of distinct terms in the autocomplete trie.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.AutocompleteTotal,
		m.AutocompleteLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.DocsIndexedTotal,
		m.DocsDeletedTotal,
		m.IngestErrorsTotal,
		m.IndexDocuments,
		m.IndexTerms,
		m.TrieTerms,
		m.CircuitBreakerState,
	)

	return m
}

func (m *Metrics) CacheHit(cache string) {
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheEviction(cache string) {
	m.CacheEvictionsTotal.WithLabelValues(cache).Inc()
}

// SetCircuitState records a breaker transition; the state is the numeric
// value of resilience.State.
func (m *Metrics) SetCircuitState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler returns the scrape handler for the registry the metrics were
// registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Handler returns the Prometheus scrape HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
