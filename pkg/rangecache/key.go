// Package rangecache implements the range-aware historical data cache.
//
// For every (asset, interval) pair the cache holds one contiguous covered
// span and the rows inside it. A request for [from, to] is answered from the
// span when it is covered; otherwise only the uncovered left and/or right
// gaps are fetched from upstream and merged into the span, with freshly
// fetched rows replacing cached rows that share a date key.
//
// Coverage is a single interval per key. A request disjoint from the cached
// span extends the span across the never-fetched middle, which then reads as
// covered but empty.
package rangecache

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/market-data-gateway/pkg/interval"
	"github.com/Sternrassler/market-data-gateway/pkg/upstream"
)

// RangeKey identifies one range cache record. Distinct intervals for the
// same asset are independent records.
type RangeKey struct {
	Asset    string
	Interval interval.Interval
}

// String renders the key as range:<asset>:<interval>.
func (k RangeKey) String() string {
	return "range:" + k.Asset + ":" + k.Interval.String()
}

// Validate reports whether the key can address a record.
func (k RangeKey) Validate() error {
	if strings.TrimSpace(k.Asset) == "" {
		return fmt.Errorf("%w: empty asset", upstream.ErrInvalidRange)
	}
	if !k.Interval.Valid() {
		return fmt.Errorf("%w: invalid interval", upstream.ErrInvalidRange)
	}
	return nil
}
