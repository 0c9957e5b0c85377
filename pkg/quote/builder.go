package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/market-data-gateway/pkg/clock"
	"github.com/Sternrassler/market-data-gateway/pkg/interval"
	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

var symbolsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_quote_symbols_total",
	Help: "Total symbols processed by the quote builder by result",
}, []string{"result"}) // "ok", "unresolved", "no_data", "error"

// ErrUnresolved is returned by a Resolver that finds no asset for a symbol.
var ErrUnresolved = errors.New("symbol not resolved")

// Resolver maps a user-facing symbol to an upstream asset identifier.
type Resolver func(ctx context.Context, symbol string) (asset string, err error)

// HistoryFunc loads bars of asset at iv within [from, to].
type HistoryFunc func(ctx context.Context, asset string, iv interval.Interval, from, to time.Time) (series.Rows, error)

// Config holds quote builder configuration.
type Config struct {
	// Concurrency is the maximum number of symbols processed in parallel.
	Concurrency int

	// LookbackDays is how many days of bars before today are loaded.
	LookbackDays int

	// Interval is the bar interval used for quotes.
	Interval interval.Interval

	// Timeout bounds the work for a single symbol.
	Timeout time.Duration

	// Clock is the time source. Nil means the system clock.
	Clock clock.Clock
}

// DefaultConfig returns the default quote builder configuration: one-minute
// bars over the last two days, four symbols at a time.
func DefaultConfig() Config {
	return Config{
		Concurrency:  4,
		LookbackDays: 2,
		Interval:     interval.Minutes(1),
		Timeout:      15 * time.Second,
	}
}

// Builder derives quotes for batches of symbols with a worker pool.
type Builder struct {
	resolve Resolver
	history HistoryFunc
	config  Config
}

// NewBuilder creates a Builder. A nil resolve uses each symbol as its own
// asset identifier.
func NewBuilder(resolve Resolver, history HistoryFunc, config Config) *Builder {
	def := DefaultConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.LookbackDays <= 0 {
		config.LookbackDays = def.LookbackDays
	}
	if !config.Interval.Valid() {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Clock == nil {
		config.Clock = clock.System{}
	}
	if resolve == nil {
		resolve = func(_ context.Context, symbol string) (string, error) { return symbol, nil }
	}
	return &Builder{resolve: resolve, history: history, config: config}
}

type symbolResult struct {
	index int
	quote Quote
	ok    bool
	err   error
}

// Build returns one quote row per symbol that could be resolved and has
// bars, in input order. Symbols that fail are skipped. When every symbol
// fails with an upstream error the first such error is returned so callers
// can fall back to cached quotes.
func (b *Builder) Build(ctx context.Context, symbols []string) (series.Rows, error) {
	start := time.Now()

	cleaned := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return series.Rows{}, nil
	}

	today := clock.Today(b.config.Clock)
	from := today.AddDate(0, 0, -b.config.LookbackDays)
	to := today
	if b.config.Interval.Intraday() {
		to = today.Add(23*time.Hour + 59*time.Minute)
	}

	workers := min(b.config.Concurrency, len(cleaned))
	queue := make(chan int, len(cleaned))
	results := make(chan symbolResult, len(cleaned))

	for i := range cleaned {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go b.worker(ctx, cleaned, from, to, queue, results, &wg, w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	quotes := make([]symbolResult, len(cleaned))
	var errs []error
	for res := range results {
		quotes[res.index] = res
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(series.Rows, 0, len(cleaned))
	for _, res := range quotes {
		if res.ok {
			out = append(out, res.quote.Row())
		}
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("build quotes: %w", errs[0])
	}

	log.Debug().
		Int("symbols", len(cleaned)).
		Int("quotes", len(out)).
		Int("errors", len(errs)).
		Dur("duration", time.Since(start)).
		Msg("Quote batch complete")

	return out, nil
}

// worker processes symbols from the queue.
func (b *Builder) worker(ctx context.Context, symbols []string, from, to time.Time, queue <-chan int, results chan<- symbolResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for i := range queue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Msg("Quote worker stopping (context cancelled)")
			return
		default:
		}

		symCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
		res := b.buildOne(symCtx, symbols[i], from, to)
		cancel()

		res.index = i
		results <- res
	}
}

func (b *Builder) buildOne(ctx context.Context, symbol string, from, to time.Time) symbolResult {
	logger := log.With().Str("symbol", symbol).Logger()

	asset, err := b.resolve(ctx, symbol)
	if err != nil || asset == "" {
		if err != nil && !errors.Is(err, ErrUnresolved) {
			symbolsTotal.WithLabelValues("error").Inc()
			logger.Warn().Err(err).Msg("Symbol resolution failed")
			return symbolResult{err: err}
		}
		symbolsTotal.WithLabelValues("unresolved").Inc()
		logger.Warn().Msg("No asset found for symbol")
		return symbolResult{}
	}

	bars, err := b.history(ctx, asset, b.config.Interval, from, to)
	if err != nil {
		symbolsTotal.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Str("asset", asset).Msg("Quote history fetch failed")
		return symbolResult{err: err}
	}

	bars.SortByTime()
	q, ok := FromHistory(symbol, bars)
	if !ok {
		symbolsTotal.WithLabelValues("no_data").Inc()
		logger.Debug().Str("asset", asset).Msg("No bars for symbol")
		return symbolResult{}
	}

	symbolsTotal.WithLabelValues("ok").Inc()
	return symbolResult{quote: q, ok: true}
}
