package rangecache

import (
	"time"

	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

// Merge combines cached and fetched rows into one sorted set restricted to
// [from, to]. Rows are deduplicated by key and a fetched row replaces a
// cached row with the same key. Neither input is modified.
func Merge(cached, fetched series.Rows, from, to time.Time) series.Rows {
	byKey := make(map[int64]int, len(cached)+len(fetched))
	merged := make(series.Rows, 0, len(cached)+len(fetched))

	add := func(r series.Row) {
		if r.Time.Before(from) || r.Time.After(to) {
			return
		}
		k := r.Time.UnixNano()
		if i, ok := byKey[k]; ok {
			merged[i] = r.Clone()
			return
		}
		byKey[k] = len(merged)
		merged = append(merged, r.Clone())
	}

	for _, r := range cached {
		add(r)
	}
	for _, r := range fetched {
		add(r)
	}

	merged.SortByTime()
	return merged
}
