package ratelimit

import (
	"testing"
	"time"
)

var testNow = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

func TestState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		age      time.Duration
		maxAge   time.Duration
		expected bool
	}{
		{name: "fresh state", age: 0, maxAge: 5 * time.Minute, expected: false},
		{name: "stale state", age: 10 * time.Minute, maxAge: 5 * time.Minute, expected: true},
		{name: "just under max age", age: 4 * time.Minute, maxAge: 5 * time.Minute, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{LastUpdate: testNow.Add(-tt.age)}
			if got := state.IsStale(testNow, tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Thresholds(t *testing.T) {
	tests := []struct {
		name           string
		remaining      int
		expectBlock    bool
		expectThrottle bool
		expectHealthy  bool
	}{
		{"healthy", 100, false, false, true},
		{"at healthy threshold", ErrorThresholdHealthy, false, false, true},
		{"below healthy, above warning", 30, false, false, false},
		{"warning", 15, false, true, false},
		{"at critical threshold", ErrorThresholdCritical, false, true, false},
		{"critical", 3, true, false, false},
		{"exhausted", 0, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{Remaining: tt.remaining}
			state.UpdateHealth()

			if got := state.NeedsCriticalBlock(); got != tt.expectBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.expectBlock)
			}
			if got := state.NeedsThrottling(); got != tt.expectThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.expectThrottle)
			}
			if state.IsHealthy != tt.expectHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.expectHealthy)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	tests := []struct {
		name    string
		resetAt time.Time
		want    time.Duration
		expired bool
	}{
		{"future", testNow.Add(30 * time.Second), 30 * time.Second, false},
		{"past", testNow.Add(-time.Minute), 0, true},
		{"now", testNow, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{ResetAt: tt.resetAt}
			if got := state.TimeUntilReset(testNow); got != tt.want {
				t.Errorf("TimeUntilReset() = %v, want %v", got, tt.want)
			}
			if got := state.Expired(testNow); got != tt.expired {
				t.Errorf("Expired() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestDefaultState(t *testing.T) {
	state := DefaultState(testNow)
	if state.Remaining != DefaultRemaining || !state.IsHealthy {
		t.Errorf("DefaultState = %+v, want healthy with %d remaining", state, DefaultRemaining)
	}
	if state.NeedsCriticalBlock() || state.NeedsThrottling() {
		t.Error("default state restricts requests")
	}
}

func TestThresholdConstants(t *testing.T) {
	if !(ErrorThresholdCritical < ErrorThresholdWarning && ErrorThresholdWarning < ErrorThresholdHealthy) {
		t.Errorf("thresholds out of order: critical=%d warning=%d healthy=%d",
			ErrorThresholdCritical, ErrorThresholdWarning, ErrorThresholdHealthy)
	}
}
