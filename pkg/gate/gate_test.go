package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate_MutualExclusion(t *testing.T) {
	g := New("test")
	ctx := context.Background()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(ctx, "range:6408:D")
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer release()

			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInFlight)
	}
	if g.Len() != 0 {
		t.Errorf("slots after all releases = %d, want 0", g.Len())
	}
}

func TestGate_DifferentKeysDoNotBlock(t *testing.T) {
	g := New("test")
	ctx := context.Background()

	releaseA, err := g.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire(a): %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := g.Acquire(ctx, "b")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acquire on a different key blocked")
	}
}

func TestGate_AbandonWhileWaiting(t *testing.T) {
	g := New("test")

	release, err := g.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := g.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waiting Acquire error = %v, want DeadlineExceeded", err)
	}

	if !g.Held("k") {
		t.Error("holder's slot was reclaimed by an abandoning waiter")
	}

	release()
	release() // idempotent

	if g.Held("k") {
		t.Error("slot not reclaimed after release")
	}

	// The key is usable again.
	release, err = g.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	release()
}

func TestGate_WaiterRunsAfterRelease(t *testing.T) {
	g := New("test")
	ctx := context.Background()

	release, err := g.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		r, err := g.Acquire(ctx, "k")
		if err != nil {
			t.Errorf("waiter Acquire: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired while key was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
}
