// Package cache provides the hot result cache: a short-TTL whole-response
// cache for non-range queries with stale-on-failure fallback.
//
// Entries are never actively expired. Freshness is evaluated at read time
// against the configured TTL (60s by default); a stale entry stays in the
// store so it can be served when a refresh fails.
//
// # Basic Usage
//
//	store := cache.NewMemoryStore(1000)
//	hot := cache.NewHotCache(store, cache.Config{TTL: time.Minute})
//
//	key := cache.CacheKey{
//		Item:   "stock_zh_a_hist",
//		Params: url.Values{"symbol": []string{"600519.SH"}},
//	}
//
//	rows, err := hot.GetOrFetch(ctx, key, func(ctx context.Context) (series.Rows, error) {
//		return client.Fetch(ctx, key.Item, key.Params)
//	})
//	if errors.Is(err, upstream.ErrTotalFailure) {
//		// upstream failed and nothing was cached
//	}
//
// # Storage
//
// Entries live in a Store. MemoryStore keeps them in process, optionally
// bounded by entry count with LRU eviction. RedisStore shares them across
// replicas as JSON documents.
//
// # Concurrency
//
// Concurrent misses for the same key are serialized by a per-key gate. The
// first caller fetches; later callers re-check the store after their turn and
// find the fresh entry. Different keys proceed in parallel.
//
// # Metrics
//
//   - gateway_hot_cache_hits_total{layer} - Fresh entries served
//   - gateway_hot_cache_misses_total{reason} - Lookups that needed a fetch
//   - gateway_hot_cache_stale_served_total - Stale entries served after a failed refresh
//   - gateway_hot_cache_total_failures_total - Failed refreshes with nothing cached
//   - gateway_hot_cache_errors_total{operation} - Store errors
//   - gateway_hot_cache_entries - Entries held by the memory store
//   - gateway_hot_cache_evictions_total - LRU evictions
package cache
