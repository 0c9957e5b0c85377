package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/market-data-gateway/pkg/clock"
	"github.com/Sternrassler/market-data-gateway/pkg/gate"
	"github.com/Sternrassler/market-data-gateway/pkg/series"
	"github.com/Sternrassler/market-data-gateway/pkg/upstream"
)

// DefaultTTL is how long a hot entry counts as fresh.
const DefaultTTL = 60 * time.Second

// Config holds the hot cache configuration.
type Config struct {
	// TTL is the freshness window. Zero means DefaultTTL.
	TTL time.Duration

	// FetchTimeout bounds each upstream fetch. Zero means no timeout.
	FetchTimeout time.Duration

	// Clock is the time source. Nil means the system clock.
	Clock clock.Clock

	// Logger is used for fallback and failure logs. Nil means the global
	// logger.
	Logger *zerolog.Logger
}

// HotCache is a TTL-bounded whole-response cache with stale-on-failure.
type HotCache struct {
	store        Store
	gate         *gate.Gate
	clock        clock.Clock
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       zerolog.Logger
}

// NewHotCache creates a HotCache on top of store.
func NewHotCache(store Store, cfg Config) *HotCache {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &HotCache{
		store:        store,
		gate:         gate.New("hot"),
		clock:        cfg.Clock,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		logger:       logger.With().Str("component", "hot-cache").Str("store", store.Name()).Logger(),
	}
}

// TTL returns the freshness window.
func (h *HotCache) TTL() time.Duration {
	return h.ttl
}

// Get returns the entry for key regardless of age, or ErrCacheMiss.
func (h *HotCache) Get(ctx context.Context, key CacheKey) (*Entry, error) {
	return h.store.Get(ctx, key.String())
}

// Put stores content under key as fetched at now, replacing any previous
// entry.
func (h *HotCache) Put(ctx context.Context, key CacheKey, content series.Rows, now time.Time) error {
	return h.put(ctx, key.String(), content, now)
}

// GetOrFetch returns a fresh cached result for key or fetches a new one.
//
// A failed fetch falls back to the existing entry, however old. Only when
// no entry exists does it return an error wrapping upstream.ErrTotalFailure.
// If ctx ends while the fetch is in flight the caller gets ctx.Err(); the
// fetch still completes and its result is cached.
func (h *HotCache) GetOrFetch(ctx context.Context, key CacheKey, fetch upstream.FetchFunc) (series.Rows, error) {
	k := key.String()

	entry := h.lookup(ctx, k)
	if entry != nil && entry.IsFresh(h.clock.Now(), h.ttl) {
		CacheHits.WithLabelValues(h.store.Name()).Inc()
		h.logger.Debug().Str("key", k).Msg("Hot cache hit")
		return entry.Content, nil
	}

	release, err := h.gate.Acquire(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", k, err)
	}

	res, err := upstream.Detach(ctx, func(ctx context.Context) upstream.Result {
		defer release()
		return h.refresh(ctx, k, fetch)
	})
	if err != nil {
		return nil, err
	}
	return res.Rows, res.Err
}

// refresh runs under the key's gate.
func (h *HotCache) refresh(ctx context.Context, k string, fetch upstream.FetchFunc) upstream.Result {
	// Another holder may have refreshed the entry while we waited.
	entry := h.lookup(ctx, k)
	if entry != nil && entry.IsFresh(h.clock.Now(), h.ttl) {
		CacheHits.WithLabelValues(h.store.Name()).Inc()
		h.logger.Debug().Str("key", k).Msg("Hot cache filled while waiting")
		return upstream.Result{Rows: entry.Content}
	}

	if entry == nil {
		CacheMisses.WithLabelValues("absent").Inc()
	} else {
		CacheMisses.WithLabelValues("stale").Inc()
	}

	res := upstream.Invoke(ctx, "hot", h.fetchTimeout, fetch)
	if res.OK() {
		if err := h.put(ctx, k, res.Rows, h.clock.Now()); err != nil {
			h.logger.Warn().Err(err).Str("key", k).Msg("Failed to store fetched result")
		}
		return upstream.Result{Rows: res.Rows.Clone()}
	}

	if entry != nil {
		StaleServed.Inc()
		h.logger.Warn().
			Err(res.Err).
			Str("key", k).
			Dur("age", entry.Age(h.clock.Now())).
			Msg("Fetch failed, serving stale entry")
		return upstream.Result{Rows: entry.Content}
	}

	TotalFailures.Inc()
	h.logger.Error().Err(res.Err).Str("key", k).Msg("Fetch failed with nothing cached")
	return upstream.Result{Err: fmt.Errorf("%w: %s: %w", upstream.ErrTotalFailure, k, res.Err)}
}

// lookup treats store errors as a miss.
func (h *HotCache) lookup(ctx context.Context, k string) *Entry {
	entry, err := h.store.Get(ctx, k)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			h.logger.Warn().Err(err).Str("key", k).Msg("Cache get error")
		}
		return nil
	}
	return entry
}

func (h *HotCache) put(ctx context.Context, k string, content series.Rows, now time.Time) error {
	if content == nil {
		content = series.Rows{}
	}
	return h.store.Set(ctx, &Entry{Key: k, Content: content, StoredAt: now})
}
