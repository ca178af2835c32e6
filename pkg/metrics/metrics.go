// Package metrics provides the centralized Prometheus registry reference for
// the fetch engine. All metrics are defined in their respective packages
// (fetch, cache) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the fetch engine.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/fetch):
//   - fetch_requests_total{endpoint, outcome} (Counter): Fetch calls by endpoint and
//     outcome (HTTP status, cache_hit, shared_hit, cancelled, failed, exhausted)
//   - fetch_request_duration_seconds{endpoint} (Histogram): Fetch duration by endpoint
//   - fetch_errors_total{class} (Counter): Normalized failures by class
//   - fetch_dedup_attached_total (Counter): Callers coalesced onto an in-flight operation
//
// Retry Metrics (pkg/fetch):
//   - fetch_retries_total{class} (Counter): Retry attempts by failure class
//   - fetch_retry_backoff_seconds{class} (Histogram): Applied backoff by failure class
//   - fetch_retry_exhausted_total{class} (Counter): Operations that exhausted max attempts
//
// Cache Metrics (pkg/cache):
//   - fetch_cache_hits_total / fetch_cache_misses_total (Counter): Memory tier traffic
//   - fetch_cache_evictions_total (Counter): Capacity evictions
//   - fetch_cache_expirations_total (Counter): TTL removals
//   - fetch_cache_entries (Gauge): Resident entries
//   - fetch_shared_cache_hits_total / fetch_shared_cache_misses_total (Counter): Shared tier traffic
//   - fetch_shared_cache_errors_total{operation} (Counter): Shared tier operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(fetch_cache_hits_total[5m])) /
//   (sum(rate(fetch_cache_hits_total[5m])) + sum(rate(fetch_cache_misses_total[5m])))
//
//   # Dedup Effectiveness
//   rate(fetch_dedup_attached_total[5m]) / rate(fetch_requests_total[5m])
//
//   # Failure Rate by Class
//   rate(fetch_errors_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(fetch_request_duration_seconds_bucket[5m]))
