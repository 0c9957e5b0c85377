package rangecache

import (
	"time"

	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

// Record is the cached span for one key. Rows are sorted ascending and every
// row key lies in [From, To]. A stored Record is never mutated; updates
// replace it.
type Record struct {
	Key  RangeKey
	From time.Time
	To   time.Time
	Rows series.Rows
}

// Covers reports whether [from, to] lies entirely inside the record's span.
func (r *Record) Covers(from, to time.Time) bool {
	return !from.Before(r.From) && !to.After(r.To)
}

// Window returns copies of the rows in [from, to].
func (r *Record) Window(from, to time.Time) series.Rows {
	return r.Rows.Window(from, to)
}
