// Package metrics documents the Prometheus metrics exposed by restbind.
// All metrics are defined in their respective packages (client, cache,
// ratelimit) via
// promauto to maintain modularity and avoid circular dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by restbind.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - restbind_requests_total{endpoint, status} (Counter): Calls by declared
//     endpoint name and outcome (HTTP status, cache_hit, resolve_error,
//     prepare_error, middleware_error, network_error)
//   - restbind_request_duration_seconds{endpoint} (Histogram): Call duration
//   - restbind_errors_total{class} (Counter): Errors by class
//     (client, server, network)
//
// Retry Metrics (pkg/client):
//   - restbind_retries_total{error_class} (Counter): Retry attempts
//   - restbind_retry_backoff_seconds{error_class} (Histogram): Backoff delays
//   - restbind_retry_exhausted_total{error_class} (Counter): Calls that
//     exhausted max attempts
//
// Cache Metrics (pkg/cache):
//   - restbind_cache_hits_total{store} (Counter): Hits by store backend
//   - restbind_cache_misses_total (Counter): Misses (absent and expired)
//   - restbind_cache_size_bytes{store} (Gauge): Cached body bytes
//   - restbind_cache_errors_total{operation} (Counter): Store operation errors
//   - restbind_cache_invalidations_total{scope} (Counter): Explicit
//     invalidations by scope (key, path, all)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - restbind_ratelimit_remaining (Gauge): Remaining budget in the
//     current window
//   - restbind_ratelimit_blocks_total (Counter): Requests blocked
//   - restbind_ratelimit_throttles_total (Counter): Requests delayed
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(restbind_cache_hits_total[5m])) /
//	(sum(rate(restbind_cache_hits_total[5m])) + sum(rate(restbind_cache_misses_total[5m])))
//
//	# Retry Pressure
//	rate(restbind_retries_total[5m])
//
//	# P95 Call Latency
//	histogram_quantile(0.95, rate(restbind_request_duration_seconds_bucket[5m]))
