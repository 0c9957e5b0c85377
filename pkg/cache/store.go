package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store persists hot cache entries. Implementations must be safe for
// concurrent use and must not share mutable state with their callers.
type Store interface {
	// Get returns the entry for key regardless of its age, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores entry under entry.Key, replacing any previous value.
	Set(ctx context.Context, entry *Entry) error

	// Name labels the store in logs and metrics.
	Name() string
}
