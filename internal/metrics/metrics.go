// Package metrics exposes Prometheus counters for identity operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// OutcomeOK is the outcome label of a successful operation. Failures are
// labelled with their error kind.
const OutcomeOK = "ok"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry     *prometheus.Registry
	operations   *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	purged       prometheus.Counter
	rateLimited  *prometheus.CounterVec
}

// New registers the identity collectors together with the Go and process
// collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_operations_total",
			Help: "Identity operations by outcome.",
		}, []string{"operation", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_cache_lookups_total",
			Help: "Session cache lookups by key family and result.",
		}, []string{"key", "result"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "identity_refresh_tokens_purged_total",
			Help: "Expired refresh token rows removed by the purge job.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
	}

	m.registry.MustRegister(
		m.operations,
		m.cacheLookups,
		m.purged,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation counts one finished operation.
func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveCacheLookup counts one cache read for a key family.
func (m *Metrics) ObserveCacheLookup(key, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(key, result).Inc()
}

// AddPurged counts rows removed by the purge job.
func (m *Metrics) AddPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}

// ObserveRateLimited counts one rejected request.
func (m *Metrics) ObserveRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limiter).Inc()
}
