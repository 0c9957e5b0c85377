package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh entries served, by store
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_hot_cache_hits_total",
			Help: "Total number of fresh hot cache entries served",
		},
		[]string{"layer"}, // "memory", "redis"
	)

	// CacheMisses tracks lookups that required a fetch
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_hot_cache_misses_total",
			Help: "Total number of hot cache lookups that required an upstream fetch",
		},
		[]string{"reason"}, // "absent", "stale"
	)

	// StaleServed tracks stale entries returned after a failed refresh
	StaleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_hot_cache_stale_served_total",
			Help: "Total number of stale entries served because the refresh failed",
		},
	)

	// TotalFailures tracks failed refreshes with nothing cached
	TotalFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_hot_cache_total_failures_total",
			Help: "Total number of failed fetches with no cached entry to fall back on",
		},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_hot_cache_errors_total",
			Help: "Total number of hot cache store errors",
		},
		[]string{"operation"}, // "get", "set"
	)

	// Entries tracks the memory store size
	Entries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_hot_cache_entries",
			Help: "Current number of entries in the memory store",
		},
	)

	// Evictions tracks LRU evictions from the memory store
	Evictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_hot_cache_evictions_total",
			Help: "Total number of entries evicted from the memory store",
		},
	)
)
