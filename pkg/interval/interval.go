// Package interval implements the bar interval arithmetic used by the range
// cache: parsing interval specifiers, stepping one unit forward or back and
// normalising timestamps to the granularity of an interval.
//
// All normalised times are expressed as wall-clock values in UTC, so a bar
// dated 2024-01-15 in any zone maps to 2024-01-15T00:00:00Z.
package interval

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is returned for interval specifiers that cannot be parsed.
var ErrInvalid = errors.New("invalid interval")

// Unit is the granularity of an Interval.
type Unit int

const (
	// Day bars are keyed by date.
	Day Unit = iota + 1
	// Week bars are keyed by date, one unit is seven days.
	Week
	// Month bars are keyed by date, one unit is one calendar month.
	Month
	// Minute bars are keyed by date-time, one unit is N minutes.
	Minute
)

// Interval is a bar interval: D, W, M or N minutes.
type Interval struct {
	unit    Unit
	minutes int
}

// Predefined date intervals.
var (
	Daily   = Interval{unit: Day}
	Weekly  = Interval{unit: Week}
	Monthly = Interval{unit: Month}
)

// Minutes returns an intraday interval of n minutes.
func Minutes(n int) Interval {
	return Interval{unit: Minute, minutes: n}
}

// Parse parses an interval specifier. "D", "W" and "M" (any case) select the
// date intervals, a positive integer selects a minute interval. An empty
// string means daily.
func Parse(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "D", "1D":
		return Daily, nil
	case "W", "1W":
		return Weekly, nil
	case "M", "1M":
		return Monthly, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return Minutes(n), nil
}

// Unit returns the interval granularity.
func (i Interval) Unit() Unit {
	return i.unit
}

// Valid reports whether i is a usable interval.
func (i Interval) Valid() bool {
	switch i.unit {
	case Day, Week, Month:
		return true
	case Minute:
		return i.minutes > 0
	default:
		return false
	}
}

// Intraday reports whether bars are keyed by date-time rather than date.
func (i Interval) Intraday() bool {
	return i.unit == Minute
}

// String returns the canonical specifier ("D", "W", "M" or the minute count).
func (i Interval) String() string {
	switch i.unit {
	case Day:
		return "D"
	case Week:
		return "W"
	case Month:
		return "M"
	case Minute:
		return strconv.Itoa(i.minutes)
	default:
		return "invalid"
	}
}

// Truncate normalises t to the key granularity of the interval. Date
// intervals drop the clock, minute intervals drop seconds. The wall clock of
// t's own location is kept.
func (i Interval) Truncate(t time.Time) time.Time {
	if i.Intraday() {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Next returns t advanced by one interval unit.
func (i Interval) Next(t time.Time) time.Time {
	return i.step(t, 1)
}

// Prev returns t moved back by one interval unit.
func (i Interval) Prev(t time.Time) time.Time {
	return i.step(t, -1)
}

func (i Interval) step(t time.Time, dir int) time.Time {
	switch i.unit {
	case Week:
		return t.AddDate(0, 0, 7*dir)
	case Month:
		return addMonths(t, dir)
	case Minute:
		return t.Add(time.Duration(dir*i.minutes) * time.Minute)
	default:
		return t.AddDate(0, 0, dir)
	}
}

// addMonths moves t by n calendar months, clamping the day to the length of
// the target month (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
