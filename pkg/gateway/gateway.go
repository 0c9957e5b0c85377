// Package gateway dispatches public data queries to the right cache: symbol
// lists become quotes behind the hot result cache, asset ranges go through
// the range cache, and everything else is a hot-cached pass-through.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/market-data-gateway/pkg/cache"
	"github.com/Sternrassler/market-data-gateway/pkg/interval"
	"github.com/Sternrassler/market-data-gateway/pkg/quote"
	"github.com/Sternrassler/market-data-gateway/pkg/rangecache"
	"github.com/Sternrassler/market-data-gateway/pkg/series"
	"github.com/Sternrassler/market-data-gateway/pkg/upstream"
)

var queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_queries_total",
	Help: "Total gateway queries by kind and result",
}, []string{"kind", "result"})

// Query kinds.
const (
	KindQuote   = "quote"
	KindRange   = "range"
	KindGeneric = "generic"
)

// Recognised query parameters.
const (
	ParamSymbols     = "symbols"
	ParamAsset       = "asset_id"
	ParamInvestingID = "investing_id"
	ParamFrom        = "from_date"
	ParamTo          = "to_date"
	ParamInterval    = "interval"
)

// ErrInvalidRequest is returned for queries that cannot be dispatched.
var ErrInvalidRequest = errors.New("invalid request")

// Provider is the upstream the gateway reads from. *client.Client
// implements it.
type Provider interface {
	Fetch(ctx context.Context, item string, params url.Values) (series.Rows, error)
	FetchRange(ctx context.Context, key rangecache.RangeKey, from, to time.Time) (series.Rows, error)
	FetchHistory(ctx context.Context, asset string, iv interval.Interval, from, to time.Time) (series.Rows, error)
	ResolveSymbol(ctx context.Context, item, symbol string) (string, error)
}

// Service answers queries from the caches.
type Service struct {
	provider Provider
	hot      *cache.HotCache
	ranges   *rangecache.Reconciler
	quotes   quote.Config
	logger   zerolog.Logger
}

// New creates a Service. The caches are shared by all queries.
func New(provider Provider, hot *cache.HotCache, ranges *rangecache.Reconciler, quotes quote.Config) *Service {
	if provider == nil || hot == nil || ranges == nil {
		panic("gateway requires a provider and both caches")
	}
	return &Service{
		provider: provider,
		hot:      hot,
		ranges:   ranges,
		quotes:   quotes,
		logger:   log.With().Str("component", "gateway").Logger(),
	}
}

// Query answers GET /{item}?{params}.
func (s *Service) Query(ctx context.Context, item string, params url.Values) (series.Rows, error) {
	item = strings.Trim(item, "/")
	if item == "" {
		return nil, fmt.Errorf("%w: empty item", ErrInvalidRequest)
	}
	if params == nil {
		params = url.Values{}
	}

	var (
		kind string
		rows series.Rows
		err  error
	)
	switch {
	case hasSymbols(params):
		kind = KindQuote
		rows, err = s.quote(ctx, item, splitSymbols(params))
	case wantsHistory(params):
		kind = KindRange
		rows, err = s.history(ctx, params)
	default:
		kind = KindGeneric
		rows, err = s.hot.GetOrFetch(ctx, cache.CacheKey{Item: item, Params: params}, func(ctx context.Context) (series.Rows, error) {
			return s.provider.Fetch(ctx, item, params)
		})
	}

	if err != nil {
		queriesTotal.WithLabelValues(kind, "error").Inc()
		s.logger.Debug().Err(err).Str("item", item).Str("kind", kind).Msg("Query failed")
		return nil, err
	}
	queriesTotal.WithLabelValues(kind, "ok").Inc()
	return rows, nil
}

// quote derives quotes for symbols, cached as a whole by the hot cache.
func (s *Service) quote(ctx context.Context, item string, symbols []string) (series.Rows, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: empty symbol list", ErrInvalidRequest)
	}

	key := cache.CacheKey{
		Item:   item,
		Params: url.Values{ParamSymbols: {strings.Join(symbols, ",")}},
	}
	builder := quote.NewBuilder(
		func(ctx context.Context, symbol string) (string, error) {
			return s.provider.ResolveSymbol(ctx, item, symbol)
		},
		s.provider.FetchHistory,
		s.quotes,
	)
	return s.hot.GetOrFetch(ctx, key, func(ctx context.Context) (series.Rows, error) {
		return builder.Build(ctx, symbols)
	})
}

// history serves an asset range through the range cache.
func (s *Service) history(ctx context.Context, params url.Values) (series.Rows, error) {
	from, to := strings.TrimSpace(params.Get(ParamFrom)), strings.TrimSpace(params.Get(ParamTo))

	iv, err := interval.Parse(params.Get(ParamInterval))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", upstream.ErrInvalidRange, err)
	}
	start, end, err := iv.Bounds(from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", upstream.ErrInvalidRange, err)
	}

	key := rangecache.RangeKey{Asset: assetID(params), Interval: iv}
	return s.ranges.GetOrFetch(ctx, key, start, end, s.provider.FetchRange)
}

func hasSymbols(params url.Values) bool {
	_, lower := params[ParamSymbols]
	_, upper := params["Symbols"]
	return lower || upper
}

// splitSymbols reads the comma separated symbol list, normalising exchange
// suffixes and dropping blanks and duplicates.
func splitSymbols(params url.Values) []string {
	raw := params.Get(ParamSymbols)
	if raw == "" {
		raw = params.Get("Symbols")
	}

	seen := make(map[string]bool)
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = cache.NormalizeSymbol(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// wantsHistory reports whether params address a time series: an asset id
// with both bounds. An asset id without bounds is an ordinary list query.
func wantsHistory(params url.Values) bool {
	return assetID(params) != "" &&
		strings.TrimSpace(params.Get(ParamFrom)) != "" &&
		strings.TrimSpace(params.Get(ParamTo)) != ""
}

func assetID(params url.Values) string {
	if id := strings.TrimSpace(params.Get(ParamAsset)); id != "" {
		return id
	}
	return strings.TrimSpace(params.Get(ParamInvestingID))
}
