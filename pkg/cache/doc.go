// Package cache provides the payload caching tiers for the fetch manager.
//
// The in-memory Store is the authoritative first tier: a bounded map with a
// strict LRU recency list and time-based expiry. The optional SharedStore is
// a Redis-backed second tier for sharing payloads across process instances.
//
// # Store Semantics
//
//   - Get promotes a live entry to most-recently-used; an entry whose age has
//     reached the TTL is removed and reported as a miss.
//   - Set refreshes the timestamp on replacement and evicts the
//     least-recently-used entry when a new key would exceed capacity.
//   - Before each insert, a bounded window at the LRU end is scanned for
//     expired entries, keeping opportunistic cleanup O(window) per insert.
//   - SweepExpired performs the full scan and is meant for periodic
//     maintenance.
//
// # Basic Usage
//
//	store := cache.NewStore(512, 5*time.Minute)
//
//	store.Set(key, payload)
//
//	if payload, ok := store.Get(key); ok {
//		// cache hit
//	}
//
// # Cacheability
//
// CacheabilityPolicy decides whether a response may be stored at all: safe
// request method, no credential headers on the request, 2xx status, and no
// prohibiting Cache-Control directive (no-store, no-cache, private,
// max-age=0).
//
//	policy := cache.DefaultCacheabilityPolicy()
//	if policy.Storable(req.Method, req.Headers, resp.StatusCode, resp.Headers) {
//		store.Set(key, resp.Body)
//	}
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - fetch_cache_hits_total / fetch_cache_misses_total - Memory tier traffic
//   - fetch_cache_evictions_total - Capacity evictions
//   - fetch_cache_expirations_total - TTL removals
//   - fetch_cache_entries - Resident entries
//   - fetch_shared_cache_hits_total / fetch_shared_cache_misses_total - Shared tier traffic
//   - fetch_shared_cache_errors_total{operation} - Shared tier operation errors
package cache
