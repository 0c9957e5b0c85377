package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Sternrassler/market-data-gateway/pkg/clock"
	"github.com/Sternrassler/market-data-gateway/pkg/interval"
	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

type fakeHistory struct {
	mu      sync.Mutex
	windows []string
	bars    map[string]series.Rows
	fail    map[string]error

	inFlight    int32
	maxInFlight int32
}

func (f *fakeHistory) load(ctx context.Context, asset string, iv interval.Interval, from, to time.Time) (series.Rows, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		m := atomic.LoadInt32(&f.maxInFlight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInFlight, m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, fmt.Sprintf("%s %s %s..%s", asset, iv, interval.Format(from), interval.Format(to)))
	if err := f.fail[asset]; err != nil {
		return nil, err
	}
	return f.bars[asset].Clone(), nil
}

func closes(vals ...float64) series.Rows {
	rows := make(series.Rows, len(vals))
	for i, v := range vals {
		rows[i] = minuteBar(i, map[string]any{"close": v})
	}
	return rows
}

func resolver(known map[string]string) Resolver {
	return func(_ context.Context, symbol string) (string, error) {
		if id, ok := known[symbol]; ok {
			return id, nil
		}
		return "", ErrUnresolved
	}
}

func testClock() clock.Clock {
	return clock.NewManual(time.Date(2024, 5, 6, 16, 0, 0, 0, time.UTC))
}

func TestBuilder_Build(t *testing.T) {
	hist := &fakeHistory{bars: map[string]series.Rows{
		"6408": closes(100, 101),
		"252":  closes(50, 49),
	}}
	b := NewBuilder(resolver(map[string]string{"AAPL": "6408", "MSFT": "252", "EMPTY": "999"}), hist.load, Config{Clock: testClock()})

	rows, err := b.Build(context.Background(), []string{"MSFT", " ", "UNKNOWN", "AAPL", "EMPTY"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var symbols []any
	for _, r := range rows {
		symbols = append(symbols, r.Values["symbol"])
	}
	if diff := cmp.Diff([]any{"MSFT", "AAPL"}, symbols); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_Window(t *testing.T) {
	hist := &fakeHistory{bars: map[string]series.Rows{"AAPL": closes(1)}}
	b := NewBuilder(nil, hist.load, Config{Clock: testClock()})

	if _, err := b.Build(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []string{"AAPL 1 2024-05-04..2024-05-06 23:59:00"}
	if diff := cmp.Diff(want, hist.windows); diff != "" {
		t.Errorf("history windows mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_BoundedConcurrency(t *testing.T) {
	hist := &fakeHistory{bars: map[string]series.Rows{}}
	var symbols []string
	for i := 0; i < 20; i++ {
		s := fmt.Sprintf("S%d", i)
		symbols = append(symbols, s)
		hist.bars[s] = closes(1, 2)
	}

	b := NewBuilder(nil, hist.load, Config{Concurrency: 3, Clock: testClock()})
	rows, err := b.Build(context.Background(), symbols)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(rows) != 20 {
		t.Errorf("rows = %d, want 20", len(rows))
	}
	if hist.maxInFlight > 3 {
		t.Errorf("max concurrent loads = %d, want <= 3", hist.maxInFlight)
	}
	for i, r := range rows {
		if r.Values["symbol"] != symbols[i] {
			t.Errorf("row %d symbol = %v, want %s", i, r.Values["symbol"], symbols[i])
		}
	}
}

func TestBuilder_AllFailedReturnsError(t *testing.T) {
	upstreamErr := errors.New("upstream down")
	hist := &fakeHistory{fail: map[string]error{"A": upstreamErr, "B": upstreamErr}}
	b := NewBuilder(nil, hist.load, Config{Clock: testClock()})

	if _, err := b.Build(context.Background(), []string{"A", "B"}); !errors.Is(err, upstreamErr) {
		t.Errorf("error = %v, want upstream error", err)
	}
}

func TestBuilder_PartialFailureSkips(t *testing.T) {
	hist := &fakeHistory{
		bars: map[string]series.Rows{"A": closes(1, 2)},
		fail: map[string]error{"B": errors.New("upstream down")},
	}
	b := NewBuilder(nil, hist.load, Config{Clock: testClock()})

	rows, err := b.Build(context.Background(), []string{"A", "B"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(rows) != 1 || rows[0].Values["symbol"] != "A" {
		t.Errorf("rows = %v, want only A", rows)
	}
}

func TestBuilder_EmptyInput(t *testing.T) {
	b := NewBuilder(nil, (&fakeHistory{}).load, Config{})
	rows, err := b.Build(context.Background(), []string{"", "  "})
	if err != nil || rows == nil || len(rows) != 0 {
		t.Errorf("Build = (%v, %v), want empty rows", rows, err)
	}
}

func TestBuilder_ContextCancelled(t *testing.T) {
	hist := &fakeHistory{bars: map[string]series.Rows{"A": closes(1)}}
	b := NewBuilder(nil, hist.load, Config{Clock: testClock()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Build(ctx, []string{"A"}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want Canceled", err)
	}
}
