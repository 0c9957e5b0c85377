package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/market-data-gateway/pkg/clock"
	"github.com/Sternrassler/market-data-gateway/pkg/upstream"
)

// Response headers carrying the upstream budget.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// DefaultThrottle is the pause applied in the warning state.
const DefaultThrottle = time.Second

// Prometheus metrics for budget tracking.
var (
	upstreamBudgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_upstream_budget_remaining",
		Help: "Remaining upstream budget in the current window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rate_limit_blocks_total",
		Help: "Total number of upstream requests blocked due to critical budget",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rate_limit_throttles_total",
		Help: "Total number of upstream requests throttled due to low budget",
	})
)

// Tracker monitors the upstream budget and gates requests.
type Tracker struct {
	store    StateStore
	logger   zerolog.Logger
	clock    clock.Clock
	throttle time.Duration

	// mu serializes read-modify-write of the state within this process.
	mu sync.Mutex
}

// NewTracker creates a new rate limit tracker.
func NewTracker(store StateStore, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryState()
	}
	return &Tracker{
		store:    store,
		logger:   logger,
		clock:    clock.System{},
		throttle: DefaultThrottle,
	}
}

// SetClock replaces the time source (for testing).
func (t *Tracker) SetClock(c clock.Clock) {
	t.clock = c
}

// SetThrottle replaces the warning-state pause (for testing).
func (t *Tracker) SetThrottle(d time.Duration) {
	t.throttle = d
}

// GetState returns the current state. A missing or expired state yields the
// default healthy state.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	now := t.clock.Now()
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rate limit state: %w", err)
	}
	if state == nil || state.Expired(now) {
		t.logger.Debug().Msg("No current rate limit state, assuming healthy")
		return DefaultState(now), nil
	}
	return state, nil
}

// UpdateFromHeaders records the budget reported by an upstream response.
// Responses without the headers leave the state unchanged.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	now := t.clock.Now()
	state := &State{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()

	t.mu.Lock()
	err = t.store.Save(ctx, state)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.record(state)
	return nil
}

// RecordFailure charges one locally observed upstream failure against the
// budget.
func (t *Tracker) RecordFailure(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	if state.Remaining > 0 {
		state.Remaining--
	}
	state.LastUpdate = t.clock.Now()
	state.UpdateHealth()

	if err := t.store.Save(ctx, state); err != nil {
		return err
	}
	t.record(state)
	return nil
}

func (t *Tracker) record(state *State) {
	upstreamBudgetRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Upstream budget CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Upstream budget WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Bool("is_healthy", state.IsHealthy).
			Msg("Upstream budget updated")
	}
}

// ShouldAllowRequest reports whether an upstream request may proceed. It
// returns false while the budget is critical. In the warning state it
// pauses before allowing the request and returns ctx.Err() if ctx ends
// during the pause.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset(t.clock.Now())).
			Msg("Upstream budget critical - blocking request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Upstream budget warning - throttling request")
		rateLimitThrottlesTotal.Inc()

		timer := time.NewTimer(t.throttle)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

// Allow is ShouldAllowRequest expressed as an error: a blocked request
// yields a rate_limit *upstream.Error.
func (t *Tracker) Allow(ctx context.Context) error {
	allowed, err := t.ShouldAllowRequest(ctx)
	if err != nil {
		return err
	}
	if !allowed {
		return &upstream.Error{Class: upstream.ClassRateLimit, Message: "request blocked: upstream budget critical"}
	}
	return nil
}
