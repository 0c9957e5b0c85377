package rangecache

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Sternrassler/market-data-gateway/pkg/interval"
	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

func TestRangeKey_String(t *testing.T) {
	tests := []struct {
		key  RangeKey
		want string
	}{
		{RangeKey{Asset: "6408", Interval: interval.Daily}, "range:6408:D"},
		{RangeKey{Asset: "6408", Interval: interval.Weekly}, "range:6408:W"},
		{RangeKey{Asset: "AAPL", Interval: interval.Minutes(15)}, "range:AAPL:15"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRangeKey_Validate(t *testing.T) {
	if err := (RangeKey{Asset: "6408", Interval: interval.Daily}).Validate(); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := (RangeKey{Asset: " ", Interval: interval.Daily}).Validate(); err == nil {
		t.Error("blank asset accepted")
	}
	if err := (RangeKey{Asset: "6408"}).Validate(); err == nil {
		t.Error("zero interval accepted")
	}
}

func TestStore_PutReplaces(t *testing.T) {
	s := NewStore()
	key := RangeKey{Asset: "6408", Interval: interval.Daily}

	if _, ok := s.Get(key); ok {
		t.Fatal("empty store returned a record")
	}

	s.Put(&Record{Key: key, From: day(2024, 1, 1), To: day(2024, 1, 31)})
	s.Put(&Record{Key: key, From: day(2024, 1, 1), To: day(2024, 2, 29), Rows: series.Rows{bar(day(2024, 2, 1), "1")}})

	rec, ok := s.Get(key)
	if !ok {
		t.Fatal("record missing after Put")
	}
	if !rec.To.Equal(day(2024, 2, 29)) || len(rec.Rows) != 1 {
		t.Errorf("record = %+v, want replaced record", rec)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_Keys(t *testing.T) {
	s := NewStore()
	s.Put(&Record{Key: RangeKey{Asset: "b", Interval: interval.Daily}})
	s.Put(&Record{Key: RangeKey{Asset: "a", Interval: interval.Weekly}})
	s.Put(&Record{Key: RangeKey{Asset: "a", Interval: interval.Daily}})

	want := []string{"range:a:D", "range:a:W", "range:b:D"}
	if diff := cmp.Diff(want, s.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecord_Covers(t *testing.T) {
	rec := record(day(2024, 1, 1), day(2024, 3, 31))

	tests := []struct {
		name     string
		from, to time.Time
		want     bool
	}{
		{"inside", day(2024, 2, 1), day(2024, 3, 31), true},
		{"exact", day(2024, 1, 1), day(2024, 3, 31), true},
		{"starts before", day(2023, 12, 1), day(2024, 2, 29), false},
		{"ends after", day(2024, 2, 1), day(2024, 4, 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.Covers(tt.from, tt.to); got != tt.want {
				t.Errorf("Covers() = %v, want %v", got, tt.want)
			}
		})
	}
}
