// Package gate implements per-key mutual exclusion for upstream fetches.
//
// At most one holder per key exists at any instant. Waiters block until the
// holder releases, then re-check their cache: the gate hands out turns, not
// results. Slots are created on demand and reclaimed as soon as no holder or
// waiter references them, so memory is bounded by the number of keys in use.
package gate

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

var (
	gateWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_fetch_gate_waits_total",
		Help: "Total number of fetch gate acquisitions that had to wait, by gate",
	}, []string{"gate"})

	gateAbandonedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_fetch_gate_abandoned_total",
		Help: "Total number of callers that gave up while waiting on a fetch gate",
	}, []string{"gate"})
)

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// Gate hands out exclusive per-key turns.
type Gate struct {
	name  string
	mu    sync.Mutex
	slots map[string]*slot
}

// New creates a Gate. name labels its metrics.
func New(name string) *Gate {
	return &Gate{
		name:  name,
		slots: make(map[string]*slot),
	}
}

// Acquire blocks until the caller holds key or ctx is done. The returned
// release func must be called exactly once; extra calls are no-ops.
func (g *Gate) Acquire(ctx context.Context, key string) (func(), error) {
	g.mu.Lock()
	s, ok := g.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		g.slots[key] = s
	}
	s.refs++
	g.mu.Unlock()

	if !s.sem.TryAcquire(1) {
		gateWaitsTotal.WithLabelValues(g.name).Inc()
		if err := s.sem.Acquire(ctx, 1); err != nil {
			gateAbandonedTotal.WithLabelValues(g.name).Inc()
			g.unref(key, s)
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			g.unref(key, s)
		})
	}, nil
}

// Held reports whether key currently has a holder or waiters.
func (g *Gate) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.slots[key]
	return ok
}

// Len returns the number of live slots.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

func (g *Gate) unref(key string, s *slot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.refs--
	if s.refs == 0 && g.slots[key] == s {
		delete(g.slots, key)
	}
}
