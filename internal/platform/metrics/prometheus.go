package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache names used as the "cache" label.
const (
	CacheListing = "listing"
	CacheShard   = "shard"
)

// MetricsManager holds the service's Prometheus collectors. A nil
// *MetricsManager is valid and records nothing.
type MetricsManager struct {
	Registry *prometheus.Registry

	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
	CacheErrors       *prometheus.CounterVec
	Invalidations     *prometheus.CounterVec
	SearchesTotal     prometheus.Counter
	SearchLatency     prometheus.Histogram
	SearchResultCount prometheus.Histogram
	MigrationsApplied prometheus.Counter
}

func NewMetricsManager(namespace string) *MetricsManager {
	registry := prometheus.NewRegistry()

	m := &MetricsManager{
		Registry: registry,
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups served from the cache backend.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that had to query storage.",
		}, []string{"cache"}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache backend failures by operation.",
		}, []string{"cache", "op"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Cache entries evicted after writes.",
		}, []string{"cache"}),
		SearchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Search queries executed.",
		}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_latency_seconds",
			Help:      "Latency of search queries.",
			Buckets:   prometheus.DefBuckets,
		}),
		SearchResultCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of listings returned per search.",
			Buckets:   []float64{0, 1, 5, 10, 20, 30},
		}),
		MigrationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_migrations_total",
			Help:      "Listings upgraded to the current schema version on read.",
		}),
	}

	registry.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.CacheErrors,
		m.Invalidations,
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultCount,
		m.MigrationsApplied,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *MetricsManager) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cache).Inc()
}

func (m *MetricsManager) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

func (m *MetricsManager) CacheError(cache, op string) {
	if m == nil {
		return
	}
	m.CacheErrors.WithLabelValues(cache, op).Inc()
}

func (m *MetricsManager) Invalidated(cache string) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(cache).Inc()
}

func (m *MetricsManager) MigrationApplied() {
	if m == nil {
		return
	}
	m.MigrationsApplied.Inc()
}

func (m *MetricsManager) ObserveSearch(started time.Time, results int) {
	if m == nil {
		return
	}
	m.SearchesTotal.Inc()
	m.SearchLatency.Observe(time.Since(started).Seconds())
	m.SearchResultCount.Observe(float64(results))
}
