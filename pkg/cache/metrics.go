package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks reads served from the store by freshness
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_cache_hits_total",
			Help: "Total number of booking cache hits",
		},
		[]string{"state"}, // "fresh", "stale"
	)

	// CacheMisses tracks reads that had to wait for a fetch
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_cache_misses_total",
			Help: "Total number of booking cache misses",
		},
	)

	// CacheFetches tracks backend fetches started by the cache
	CacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_cache_fetches_total",
			Help: "Total number of fetches issued by the booking cache",
		},
		[]string{"result"}, // "ok", "error", "discarded"
	)

	// CacheDeduplicated tracks reads that attached to an in-flight fetch
	CacheDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_cache_dedup_total",
			Help: "Total number of reads that shared an in-flight fetch",
		},
	)

	// CacheInvalidations tracks entries marked stale
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_cache_invalidations_total",
			Help: "Total number of booking cache invalidations",
		},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "scan"
	)
)
