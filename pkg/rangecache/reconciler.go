package rangecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/market-data-gateway/pkg/gate"
	"github.com/Sternrassler/market-data-gateway/pkg/series"
	"github.com/Sternrassler/market-data-gateway/pkg/upstream"
)

// FetchFunc retrieves the rows of key within [from, to] from upstream.
type FetchFunc func(ctx context.Context, key RangeKey, from, to time.Time) (series.Rows, error)

// Config holds the reconciler configuration.
type Config struct {
	// FetchTimeout bounds each gap fetch. Zero means no timeout.
	FetchTimeout time.Duration

	// Logger is used for fallback and failure logs. Nil means the global
	// logger.
	Logger *zerolog.Logger
}

// Reconciler answers range requests from the Store, fetching only the gaps.
type Reconciler struct {
	store        *Store
	gate         *gate.Gate
	fetchTimeout time.Duration
	logger       zerolog.Logger
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store *Store, cfg Config) *Reconciler {
	if store == nil {
		panic("range store cannot be nil")
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Reconciler{
		store:        store,
		gate:         gate.New("range"),
		fetchTimeout: cfg.FetchTimeout,
		logger:       logger.With().Str("component", "range-cache").Logger(),
	}
}

// Store returns the underlying record store.
func (r *Reconciler) Store() *Store {
	return r.store
}

type gapResult struct {
	gap Gap
	res upstream.Result
}

// GetOrFetch returns the rows of key dated within [from, to].
//
// Bounds are normalised to the key's interval first. Covered requests are
// served without touching upstream or the gate. Otherwise the missing gaps
// are fetched in parallel under the key's gate and merged into the record.
// A failed gap fetch is tolerated when a record exists; only a failure with
// nothing cached returns an error wrapping upstream.ErrTotalFailure.
func (r *Reconciler) GetOrFetch(ctx context.Context, key RangeKey, from, to time.Time, fetch FetchFunc) (series.Rows, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: from %s is after to %s", upstream.ErrInvalidRange,
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	from, to = key.Interval.Truncate(from), key.Interval.Truncate(to)

	if rec, ok := r.store.Get(key); ok && rec.Covers(from, to) {
		rangeRequestsTotal.WithLabelValues("hit").Inc()
		r.logger.Debug().Str("key", key.String()).Msg("Range cache hit")
		return rec.Window(from, to), nil
	}

	release, err := r.gate.Acquire(ctx, key.String())
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", key, err)
	}

	res, err := upstream.Detach(ctx, func(ctx context.Context) upstream.Result {
		defer release()
		return r.reconcile(ctx, key, from, to, fetch)
	})
	if err != nil {
		return nil, err
	}
	return res.Rows, res.Err
}

// reconcile runs under the key's gate.
func (r *Reconciler) reconcile(ctx context.Context, key RangeKey, from, to time.Time, fetch FetchFunc) upstream.Result {
	logger := r.logger.With().Str("key", key.String()).Logger()

	rec, _ := r.store.Get(key)
	if rec != nil && rec.Covers(from, to) {
		rangeRequestsTotal.WithLabelValues("hit").Inc()
		logger.Debug().Msg("Range filled while waiting")
		return upstream.Result{Rows: rec.Window(from, to)}
	}

	gaps := MissingRanges(rec, key.Interval, from, to)
	if len(gaps) == 0 {
		// The uncovered edges are shorter than one interval unit.
		rangeRequestsTotal.WithLabelValues("hit").Inc()
		logger.Debug().Msg("No fetchable gap, serving cached span")
		return upstream.Result{Rows: rec.Window(from, to)}
	}
	results := r.fetchGaps(ctx, key, gaps, fetch)

	var (
		fetched          series.Rows
		spanFrom, spanTo time.Time
		failed           []error
	)
	if rec != nil {
		spanFrom, spanTo = rec.From, rec.To
	}
	for _, gr := range results {
		if !gr.res.OK() {
			failed = append(failed, gr.res.Err)
			logger.Warn().
				Err(gr.res.Err).
				Str("side", string(gr.gap.Side)).
				Time("from", gr.gap.From).
				Time("to", gr.gap.To).
				Msg("Gap fetch failed")
			continue
		}
		for _, row := range gr.res.Rows {
			row = row.Clone()
			row.Time = key.Interval.Truncate(row.Time)
			fetched = append(fetched, row)
		}
		switch gr.gap.Side {
		case SideWhole:
			spanFrom, spanTo = gr.gap.From, gr.gap.To
		case SideLeft:
			spanFrom = gr.gap.From
		case SideRight:
			spanTo = gr.gap.To
		}
	}

	if len(results) > 0 && len(failed) == len(results) {
		if rec == nil {
			rangeRequestsTotal.WithLabelValues("failed").Inc()
			logger.Error().Err(failed[0]).Msg("Range fetch failed with nothing cached")
			return upstream.Result{Err: fmt.Errorf("%w: %s: %w", upstream.ErrTotalFailure, key, failed[0])}
		}
		rangeRequestsTotal.WithLabelValues("stale").Inc()
		logger.Warn().Msg("All gap fetches failed, serving cached span")
		return upstream.Result{Rows: rec.Window(from, to)}
	}

	var cached series.Rows
	if rec != nil {
		cached = rec.Rows
	}
	updated := &Record{
		Key:  key,
		From: spanFrom,
		To:   spanTo,
		Rows: Merge(cached, fetched, spanFrom, spanTo),
	}
	r.store.Put(updated)

	outcome := "fetched"
	if len(failed) > 0 {
		outcome = "partial"
	}
	rangeRequestsTotal.WithLabelValues(outcome).Inc()
	logger.Debug().
		Int("gaps", len(gaps)).
		Int("failed", len(failed)).
		Int("fetched_rows", len(fetched)).
		Time("span_from", spanFrom).
		Time("span_to", spanTo).
		Msg("Range record updated")

	return upstream.Result{Rows: updated.Window(from, to)}
}

// fetchGaps fetches every gap concurrently. A failing gap does not cancel
// the others. A gap whose rows lack a date key fails as a decode error.
func (r *Reconciler) fetchGaps(ctx context.Context, key RangeKey, gaps []Gap, fetch FetchFunc) []gapResult {
	results := make([]gapResult, len(gaps))

	var wg sync.WaitGroup
	for i, gap := range gaps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := upstream.Invoke(ctx, "range", r.fetchTimeout, func(ctx context.Context) (series.Rows, error) {
				rows, err := fetch(ctx, key, gap.From, gap.To)
				if err != nil {
					return nil, err
				}
				if err := rows.Keyed(); err != nil {
					return nil, &upstream.Error{Class: upstream.ClassDecode, Message: "range rows", Err: err}
				}
				return rows, nil
			})
			result := "ok"
			if !res.OK() {
				result = string(upstream.Classify(res.Err))
			}
			rangeGapFetchesTotal.WithLabelValues(string(gap.Side), result).Inc()
			results[i] = gapResult{gap: gap, res: res}
		}()
	}
	wg.Wait()

	return results
}
