package rangecache

import (
	"sort"
	"sync"
)

// Store holds one Record per key for the life of the process.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	rows    int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Get returns the record for key. The returned record must not be modified.
func (s *Store) Get(key RangeKey) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key.String()]
	return rec, ok
}

// Put replaces the record for rec.Key.
func (s *Store) Put(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := rec.Key.String()
	if old, ok := s.records[k]; ok {
		s.rows -= len(old.Rows)
	}
	s.records[k] = rec
	s.rows += len(rec.Rows)

	rangeRecords.Set(float64(len(s.records)))
	rangeRows.Set(float64(s.rows))
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns the sorted string keys of all records.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
