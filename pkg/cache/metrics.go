package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by store backend (memory, redis).
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restbind_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"store"},
	)

	// cacheMisses tracks cache misses (absent and expired alike).
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restbind_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// cacheSize tracks cache size in bytes by store backend.
	cacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "restbind_cache_size_bytes",
			Help: "Current size of cached response bodies in bytes",
		},
		[]string{"store"},
	)

	// cacheErrors tracks cache operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restbind_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)

	// cacheInvalidations tracks explicit invalidations by scope.
	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restbind_cache_invalidations_total",
			Help: "Total number of explicit cache invalidations",
		},
		[]string{"scope"}, // "key", "path", "all"
	)
)
