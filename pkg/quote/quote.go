// Package quote derives near-real-time quotes from the most recent bars of
// a short intraday history and builds them for many symbols concurrently.
package quote

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

// Rounding applied to derived fields.
const (
	ChangePlaces        = 6
	ChangePercentPlaces = 4
)

// Quote is the latest price of a symbol with its change against the
// previous bar.
type Quote struct {
	Symbol    string
	Time      time.Time
	Last      any
	Open      any
	High      any
	Low       any
	PrevClose any
	Volume    any

	// Change and ChangePct are nil when they cannot be derived.
	Change    *decimal.Decimal
	ChangePct *decimal.Decimal
}

// FromHistory builds a quote from bars sorted ascending. The last bar gives
// the price; the bar before it (or the last bar's open when there is only
// one) gives the previous close. It returns false when there is no usable
// close price.
func FromHistory(symbol string, bars series.Rows) (Quote, bool) {
	if len(bars) == 0 {
		return Quote{}, false
	}
	last := bars[len(bars)-1]
	closeVal, ok := last.Values["close"]
	if !ok || closeVal == nil {
		return Quote{}, false
	}

	q := Quote{
		Symbol: symbol,
		Time:   last.Time,
		Last:   closeVal,
		Open:   last.Values["open"],
		High:   last.Values["high"],
		Low:    last.Values["low"],
		Volume: last.Values["volume"],
	}
	if len(bars) >= 2 {
		q.PrevClose = bars[len(bars)-2].Values["close"]
	} else {
		q.PrevClose = q.Open
	}

	closePrice, okClose := toDecimal(closeVal)
	prevClose, okPrev := toDecimal(q.PrevClose)
	if okClose && okPrev {
		ch := closePrice.Sub(prevClose).Round(ChangePlaces)
		q.Change = &ch
		if !prevClose.IsZero() {
			chp := ch.Div(prevClose).Mul(decimal.NewFromInt(100)).Round(ChangePercentPlaces)
			q.ChangePct = &chp
		}
	}
	return q, true
}

// Row renders the quote in the gateway's wire shape.
func (q Quote) Row() series.Row {
	return series.Row{
		Time: q.Time,
		Values: map[string]any{
			"symbol":           q.Symbol,
			"lp":               q.Last,
			"open_price":       q.Open,
			"high_price":       q.High,
			"low_price":        q.Low,
			"prev_close_price": q.PrevClose,
			"ch":               decimalValue(q.Change),
			"chp":              decimalValue(q.ChangePct),
			"volume":           q.Volume,
		},
	}
}

func decimalValue(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return json.Number(d.String())
}

// toDecimal accepts the numeric shapes rows carry after JSON decoding.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	case decimal.Decimal:
		return n, true
	default:
		return decimal.Decimal{}, false
	}
}

// String implements fmt.Stringer for logs.
func (q Quote) String() string {
	return fmt.Sprintf("%s lp=%v ch=%s chp=%s", q.Symbol, q.Last, optional(q.Change), optional(q.ChangePct))
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
