// Package metrics holds the Prometheus instruments exported by tickerlab.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tickerlab"

// Metrics groups the pipeline counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	BarsFetched    prometheus.Counter
	BarsInserted   prometheus.Counter
	BarsDuplicate  prometheus.Counter
	SourceErrors   *prometheus.CounterVec
	Backtests      *prometheus.CounterVec
	FetchDurations prometheus.Histogram
}

// New creates the instruments on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total",
			Help: "Retrievals served entirely from the store.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total",
			Help: "Retrievals that fell through to the external source.",
		}),
		BarsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bars_fetched_total",
			Help: "Bars returned by external sources.",
		}),
		BarsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bars_inserted_total",
			Help: "Bars newly written to the store.",
		}),
		BarsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bars_duplicate_total",
			Help: "Fetched bars skipped because their key was already stored.",
		}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "source_errors_total",
			Help: "External source failures by provider.",
		}, []string{"source"}),
		Backtests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "backtests_total",
			Help: "Backtest executions by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		FetchDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fetch_seconds",
			Help:    "Latency of cache-or-fetch retrievals.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.CacheHits, m.CacheMisses, m.BarsFetched, m.BarsInserted, m.BarsDuplicate,
		m.SourceErrors, m.Backtests, m.FetchDurations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ---------------------------------------------------------------------------
// Nil-safe recorders
// ---------------------------------------------------------------------------

// CacheHit records a retrieval served from the store.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// CacheMiss records a retrieval that consulted the external source.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// Ingested records the outcome of one ingestion.
func (m *Metrics) Ingested(fetched, inserted, duplicate int) {
	if m == nil {
		return
	}
	m.BarsFetched.Add(float64(fetched))
	m.BarsInserted.Add(float64(inserted))
	m.BarsDuplicate.Add(float64(duplicate))
}

// SourceError records a failed external fetch.
func (m *Metrics) SourceError(source string) {
	if m != nil {
		m.SourceErrors.WithLabelValues(source).Inc()
	}
}

// Backtest records a simulation outcome ("ok", "no_data" or "error").
func (m *Metrics) Backtest(strategy, outcome string) {
	if m != nil {
		m.Backtests.WithLabelValues(strategy, outcome).Inc()
	}
}

// ObserveFetch records the latency of a retrieval in seconds.
func (m *Metrics) ObserveFetch(seconds float64) {
	if m != nil {
		m.FetchDurations.Observe(seconds)
	}
}
