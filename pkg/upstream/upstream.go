// Package upstream defines the boundary between the caches and whatever
// fetches data from the outside world: the fetch function contract, the
// explicit Result value that carries success or failure back to the cache,
// and the failure taxonomy.
package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_fetches_total",
		Help: "Total upstream fetches by caller and outcome class",
	}, []string{"caller", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_upstream_fetch_duration_seconds",
		Help:    "Upstream fetch duration in seconds by caller",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"caller"})
)

// FetchFunc retrieves rows from upstream.
type FetchFunc func(ctx context.Context) (series.Rows, error)

// Result is the outcome of one fetch. Exactly one of Rows/Err is meaningful:
// Err == nil means success, and an empty Rows is a valid (no data) success.
type Result struct {
	Rows series.Rows
	Err  error
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Invoke runs fn with timeout applied (zero means none). Errors are wrapped
// into *Error and a panic inside fn is recovered as a ClassInternal failure.
// caller labels metrics.
func Invoke(ctx context.Context, caller string, timeout time.Duration, fn FetchFunc) (res Result) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Str("caller", caller).
				Interface("panic", p).
				Msg("Fetch function panicked")
			res = Result{Err: &Error{Class: ClassInternal, Message: "fetch panicked", Err: fmt.Errorf("%v", p)}}
		}

		fetchDuration.WithLabelValues(caller).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if res.Err != nil {
			outcome = string(Classify(res.Err))
		}
		fetchesTotal.WithLabelValues(caller, outcome).Inc()
	}()

	rows, err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		// fn ignored its deadline; its rows are not trusted.
		err = ctx.Err()
	}
	if err != nil {
		return Result{Err: Wrap(err)}
	}
	if rows == nil {
		rows = series.Rows{}
	}
	return Result{Rows: rows}
}

// Detach runs fn on a context that survives cancellation of ctx. The caller
// waits for the result or for ctx to be done, whichever comes first; in the
// latter case fn keeps running to completion and its result is dropped.
func Detach[T any](ctx context.Context, fn func(context.Context) T) (T, error) {
	done := make(chan T, 1)
	go func() {
		done <- fn(context.WithoutCancel(ctx))
	}()

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
