package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MemoryHits tracks in-memory cache hits
	MemoryHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_cache_hits_total",
			Help: "Total number of in-memory cache hits",
		},
	)

	// MemoryMisses tracks in-memory cache misses
	MemoryMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_cache_misses_total",
			Help: "Total number of in-memory cache misses",
		},
	)

	// MemoryEvictions tracks capacity evictions from the LRU end
	MemoryEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_cache_evictions_total",
			Help: "Total number of entries evicted for capacity",
		},
	)

	// MemoryExpirations tracks TTL removals (on read, amortized cleanup, or sweep)
	MemoryExpirations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_cache_expirations_total",
			Help: "Total number of entries removed after TTL expiry",
		},
	)

	// MemoryEntries tracks the number of resident entries
	MemoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetch_cache_entries",
			Help: "Current number of resident in-memory cache entries",
		},
	)

	// SharedHits tracks shared-tier (Redis) cache hits
	SharedHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_shared_cache_hits_total",
			Help: "Total number of shared cache tier hits",
		},
	)

	// SharedMisses tracks shared-tier (Redis) cache misses
	SharedMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_shared_cache_misses_total",
			Help: "Total number of shared cache tier misses",
		},
	)

	// SharedErrors tracks shared-tier operation errors
	SharedErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_shared_cache_errors_total",
			Help: "Total number of shared cache tier operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
