package cache

import (
	"container/list"
	"context"
	"sync"
)

// MemoryStore is an in-process Store. With a positive limit it evicts the
// least recently used entry once the limit is exceeded.
type MemoryStore struct {
	mu      sync.Mutex
	limit   int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

// NewMemoryStore creates a MemoryStore. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		limit:   maxEntries,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns a copy of the entry for key.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	s.order.MoveToFront(el)
	return el.Value.(*Entry).Clone(), nil
}

// Set stores a copy of entry.
func (s *MemoryStore) Set(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := entry.Clone()
	if el, ok := s.entries[entry.Key]; ok {
		el.Value = stored
		s.order.MoveToFront(el)
		return nil
	}

	s.entries[entry.Key] = s.order.PushFront(stored)
	for s.limit > 0 && s.order.Len() > s.limit {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*Entry).Key)
		Evictions.Inc()
	}
	Entries.Set(float64(s.order.Len()))
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Name implements Store.
func (s *MemoryStore) Name() string {
	return "memory"
}
