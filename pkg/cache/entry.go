package cache

import (
	"time"

	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

// Entry is a cached query result.
type Entry struct {
	// Key is the CacheKey string the entry is stored under.
	Key string `json:"key"`

	// Content is the result rows.
	Content series.Rows `json:"content"`

	// StoredAt is when the result was fetched.
	StoredAt time.Time `json:"stored_at"`
}

// IsFresh reports whether the entry is younger than ttl at now.
func (e *Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}

// Age returns how old the entry is at now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Clone returns a copy that shares no mutable state with e.
func (e *Entry) Clone() *Entry {
	return &Entry{
		Key:      e.Key,
		Content:  e.Content.Clone(),
		StoredAt: e.StoredAt,
	}
}
