// Package ratelimit tracks the upstream error budget and gates requests.
// It reads the X-RateLimit-Remaining and X-RateLimit-Reset response headers,
// counts locally observed failures, and refuses to call upstream while the
// budget is critically low.
package ratelimit

import (
	"time"
)

// Redis keys for shared budget state.
const (
	RedisKeyRemaining      = "gateway:rate_limit:remaining"
	RedisKeyResetTimestamp = "gateway:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "gateway:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// ErrorThresholdCritical blocks all requests when the remaining budget
	// falls below this value.
	ErrorThresholdCritical = 5

	// ErrorThresholdWarning applies throttling when the remaining budget
	// falls below this value.
	ErrorThresholdWarning = 20

	// ErrorThresholdHealthy indicates normal operation.
	ErrorThresholdHealthy = 50

	// DefaultRemaining is assumed until upstream reports a budget.
	DefaultRemaining = 100
)

// State is the current upstream budget. With a Redis state store it is
// shared by every gateway replica.
type State struct {
	// Remaining is the number of requests or errors upstream still allows
	// in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ErrorThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// DefaultState returns the optimistic state used before any header was seen.
func DefaultState(now time.Time) *State {
	return &State{
		Remaining:  DefaultRemaining,
		ResetAt:    now.Add(60 * time.Second),
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// IsStale returns true if the state is older than maxAge at now.
func (s *State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// Expired reports whether the window has reset at now. An expired state no
// longer restricts requests.
func (s *State) Expired(now time.Time) bool {
	return !now.Before(s.ResetAt)
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ErrorThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ErrorThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0 if it
// already has.
func (s *State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ErrorThresholdHealthy
}
