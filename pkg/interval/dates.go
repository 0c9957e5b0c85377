package interval

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned for date inputs that match no accepted layout.
var ErrInvalidDate = errors.New("invalid date")

// Accepted date and date-time layouts, most specific first.
var layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

const (
	// DateLayout is used to render date keys.
	DateLayout = "2006-01-02"
	// DateTimeLayout is used to render date-time keys.
	DateTimeLayout = "2006-01-02 15:04:05"
)

// ParseTime parses a date or date-time in any of the supported layouts
// (YYYY-MM-DD, YYYYMMDD, M/D/YYYY, M/D/YYYY HH:MM, RFC3339, ...). Values
// without a zone are taken as UTC. A bare integer is read as unix seconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if len(s) != 8 {
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised %q", ErrInvalidDate, s)
}

// NormalizeDate renders any accepted date input as YYYY-MM-DD. It returns an
// empty string for empty or unparseable input.
func NormalizeDate(s string) string {
	t, err := ParseTime(s)
	if err != nil {
		return ""
	}
	return t.Format(DateLayout)
}

// Bounds parses a requested window. For intraday intervals date-only bounds
// expand to the whole day: from starts at 00:00 and to ends at 23:59.
func (i Interval) Bounds(from, to string) (time.Time, time.Time, error) {
	f, err := ParseTime(from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from: %w", err)
	}
	t, err := ParseTime(to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to: %w", err)
	}
	f, t = i.Truncate(f), i.Truncate(t)
	if i.Intraday() && isMidnight(t) && !hasClock(to) {
		t = t.Add(23*time.Hour + 59*time.Minute)
	}
	return f, t, nil
}

// Format renders a key time the way rows carry it: a date for midnight keys,
// a date-time otherwise.
func Format(t time.Time) string {
	if isMidnight(t) {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func hasClock(s string) bool {
	return strings.ContainsAny(strings.TrimSpace(s), ":T")
}
