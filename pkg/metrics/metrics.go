// Package metrics exposes the gateway's Prometheus metrics. Collectors are
// defined next to the code that updates them (cache, rangecache, gate,
// upstream, client, ratelimit, quote, gateway) and registered via promauto;
// this package serves them and documents the full set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Hot Result Cache (pkg/cache):
//   - gateway_hot_cache_hits_total{layer} (Counter): Fresh hits by store (memory, redis)
//   - gateway_hot_cache_misses_total{reason} (Counter): Misses by reason (absent, stale)
//   - gateway_hot_cache_stale_served_total (Counter): Stale entries served after an upstream failure
//   - gateway_hot_cache_total_failures_total (Counter): Failures with nothing cached
//   - gateway_hot_cache_errors_total{operation} (Counter): Store errors
//   - gateway_hot_cache_entries (Gauge): Entries held by the memory store
//   - gateway_hot_cache_evictions_total (Counter): LRU evictions
//
// Range Cache (pkg/rangecache):
//   - gateway_range_cache_requests_total{outcome} (Counter): hit, fetched, partial, stale, failed
//   - gateway_range_cache_gap_fetches_total{side, result} (Counter): Gap fetches by side
//   - gateway_range_cache_records (Gauge): Stored range records
//   - gateway_range_cache_rows (Gauge): Rows across all records
//
// Fetch Gate (pkg/gate):
//   - gateway_fetch_gate_waits_total{gate} (Counter): Callers that waited for a key
//   - gateway_fetch_gate_abandoned_total{gate} (Counter): Waiters that gave up
//
// Upstream Fetch Boundary (pkg/upstream):
//   - gateway_upstream_fetches_total{caller, outcome} (Counter): Fetches by cache and outcome
//   - gateway_upstream_fetch_duration_seconds{caller} (Histogram): Fetch duration
//
// Upstream Client (pkg/client):
//   - gateway_upstream_requests_total{endpoint, status} (Counter): HTTP requests by status
//   - gateway_upstream_request_duration_seconds{endpoint} (Histogram): Request duration incl. retries
//   - gateway_upstream_errors_total{class} (Counter): Failed attempts by error class
//   - gateway_upstream_retries_total{error_class} (Counter): Retry attempts
//   - gateway_upstream_retry_backoff_seconds{error_class} (Histogram): Backoff waits
//   - gateway_upstream_retry_exhausted_total{error_class} (Counter): Requests that ran out of attempts
//
// Upstream Budget (pkg/ratelimit):
//   - gateway_upstream_budget_remaining (Gauge): Remaining upstream error budget
//   - gateway_rate_limit_blocks_total (Counter): Requests blocked in the critical state
//   - gateway_rate_limit_throttles_total (Counter): Requests delayed in the warning state
//
// Quotes and Dispatch (pkg/quote, pkg/gateway):
//   - gateway_quote_symbols_total{result} (Counter): ok, no_data, unresolved, error
//   - gateway_queries_total{kind, result} (Counter): quote, range, generic
//
// Example Prometheus Queries:
//
//   # Hot Cache Hit Rate
//   sum(rate(gateway_hot_cache_hits_total[5m])) /
//   (sum(rate(gateway_hot_cache_hits_total[5m])) + sum(rate(gateway_hot_cache_misses_total[5m])))
//
//   # Share of answers served stale
//   rate(gateway_hot_cache_stale_served_total[5m]) / rate(gateway_queries_total[5m])
//
//   # Upstream Budget Status
//   gateway_upstream_budget_remaining < 20
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(gateway_upstream_request_duration_seconds_bucket[5m]))
