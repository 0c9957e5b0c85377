package quote

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

func minuteBar(m int, values map[string]any) series.Row {
	return series.Row{Time: time.Date(2024, 5, 6, 15, m, 0, 0, time.UTC), Values: values}
}

func TestFromHistory(t *testing.T) {
	tests := []struct {
		name       string
		bars       series.Rows
		wantOK     bool
		wantLast   any
		wantPrev   any
		wantCh     string
		wantChp    string
		wantNilChp bool
	}{
		{
			name: "two bars",
			bars: series.Rows{
				minuteBar(58, map[string]any{"close": json.Number("189.50")}),
				minuteBar(59, map[string]any{"open": json.Number("189.5"), "close": json.Number("189.87")}),
			},
			wantOK:   true,
			wantLast: json.Number("189.87"),
			wantPrev: json.Number("189.50"),
			wantCh:   "0.37",
			wantChp:  "0.1953",
		},
		{
			name: "single bar uses open",
			bars: series.Rows{
				minuteBar(59, map[string]any{"open": 100.0, "close": 99.0}),
			},
			wantOK:   true,
			wantLast: 99.0,
			wantPrev: 100.0,
			wantCh:   "-1",
			wantChp:  "-1",
		},
		{
			name: "change rounded to six places",
			bars: series.Rows{
				minuteBar(58, map[string]any{"close": "3"}),
				minuteBar(59, map[string]any{"close": "3.12345678"}),
			},
			wantOK:   true,
			wantLast: "3.12345678",
			wantPrev: "3",
			wantCh:   "0.123457",
			wantChp:  "4.1152",
		},
		{
			name: "zero previous close has no percent",
			bars: series.Rows{
				minuteBar(58, map[string]any{"close": 0}),
				minuteBar(59, map[string]any{"close": 5}),
			},
			wantOK:     true,
			wantLast:   5,
			wantPrev:   0,
			wantCh:     "5",
			wantNilChp: true,
		},
		{
			name:   "no bars",
			wantOK: false,
		},
		{
			name: "missing close",
			bars: series.Rows{
				minuteBar(59, map[string]any{"open": 1.0}),
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := FromHistory("AAPL", tt.bars)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if q.Last != tt.wantLast {
				t.Errorf("Last = %v, want %v", q.Last, tt.wantLast)
			}
			if q.PrevClose != tt.wantPrev {
				t.Errorf("PrevClose = %v, want %v", q.PrevClose, tt.wantPrev)
			}
			if q.Change == nil || q.Change.String() != tt.wantCh {
				t.Errorf("Change = %s, want %s", optional(q.Change), tt.wantCh)
			}
			if tt.wantNilChp {
				if q.ChangePct != nil {
					t.Errorf("ChangePct = %s, want nil", q.ChangePct)
				}
			} else if q.ChangePct == nil || q.ChangePct.String() != tt.wantChp {
				t.Errorf("ChangePct = %s, want %s", optional(q.ChangePct), tt.wantChp)
			}
		})
	}
}

func TestFromHistory_NonNumericPrevious(t *testing.T) {
	q, ok := FromHistory("X", series.Rows{
		minuteBar(58, map[string]any{"close": "n/a"}),
		minuteBar(59, map[string]any{"close": 2.0}),
	})
	if !ok {
		t.Fatal("quote not built")
	}
	if q.Change != nil || q.ChangePct != nil {
		t.Errorf("change derived from a non-numeric close: %s", q)
	}
}

func TestQuote_Row(t *testing.T) {
	q, _ := FromHistory("AAPL", series.Rows{
		minuteBar(58, map[string]any{"close": json.Number("10")}),
		minuteBar(59, map[string]any{"close": json.Number("11"), "volume": json.Number("1200")}),
	})

	data, err := json.Marshal(q.Row())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := map[string]any{
		"symbol":           "AAPL",
		"lp":               11.0,
		"prev_close_price": 10.0,
		"ch":               1.0,
		"chp":              10.0,
		"volume":           1200.0,
		"date":             "2024-05-06 15:59:00",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v (%T), want %v", k, got[k], got[k], v)
		}
	}
}
