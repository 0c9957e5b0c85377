package rangecache

import (
	"time"

	"github.com/Sternrassler/market-data-gateway/pkg/interval"
)

// Side tells which edge of the cached span a gap extends.
type Side string

const (
	// SideWhole is the full request when nothing is cached.
	SideWhole Side = "whole"
	// SideLeft lies before the cached span.
	SideLeft Side = "left"
	// SideRight lies after the cached span.
	SideRight Side = "right"
)

// Gap is a sub-range of a request that is not covered by the cached span.
type Gap struct {
	From time.Time
	To   time.Time
	Side Side
}

// MissingRanges returns the gaps of [from, to] not covered by rec. A nil rec
// yields the whole request; a covered request yields none. Gaps never
// overlap the cached span: they stop one interval unit short of it. A side
// whose gap would end before it starts (span edges off the bar grid) is
// dropped. from and to must already be normalised to iv.
func MissingRanges(rec *Record, iv interval.Interval, from, to time.Time) []Gap {
	if from.After(to) {
		return nil
	}
	if rec == nil {
		return []Gap{{From: from, To: to, Side: SideWhole}}
	}

	var gaps []Gap
	if from.Before(rec.From) {
		gaps = appendGap(gaps, Gap{From: from, To: earliest(iv.Prev(rec.From), to), Side: SideLeft})
	}
	if to.After(rec.To) {
		gaps = appendGap(gaps, Gap{From: latest(iv.Next(rec.To), from), To: to, Side: SideRight})
	}
	return gaps
}

func appendGap(gaps []Gap, g Gap) []Gap {
	if g.From.After(g.To) {
		return gaps
	}
	return append(gaps, g)
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
