// Package telemetry exposes Prometheus collectors for the data layer and the
// backtest engine. Collectors are registered on the default registry and
// served by the ops HTTP server's /metrics endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SeriesFetches counts upstream series fetches by source.
	SeriesFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "macrorun_series_fetch_total",
		Help: "Number of series fetched from upstream data sources",
	}, []string{"source"})

	// CacheHits counts data-cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "macrorun_cache_hits_total",
		Help: "Number of data cache hits",
	})

	// CacheMisses counts data-cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "macrorun_cache_misses_total",
		Help: "Number of data cache misses",
	})

	// Rebalances counts processed rebalance dates across runs.
	Rebalances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "macrorun_rebalances_total",
		Help: "Number of rebalance dates processed",
	})

	// RunDuration observes wall-clock backtest durations.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "macrorun_backtest_duration_seconds",
		Help:    "Backtest run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)
