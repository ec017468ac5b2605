// Package store implements the Global Store: the run-scoped counters table
// and free-form glob mapping shared by reference across every Stage and
// every line of a run. Mutations are never rolled back on stage failure.
package store

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Store holds the two sub-structures that persist for the entire run.
type Store struct {
	counters *xsync.Map[string, *atomic.Int64]
	glob     *xsync.Map[string, any]
}

// New returns an empty Store. A Store is shared by reference: every Stage in
// a Pipeline and every line processed during a run sees the same instance.
func New() *Store {
	return &Store{
		counters: xsync.NewMap[string, *atomic.Int64](),
		glob:     xsync.NewMap[string, any](),
	}
}

// Inc atomically increments counters[key] (default 0) and returns the new
// value. Repeated calls for the same key observe a strictly increasing
// sequence starting at 1.
func (s *Store) Inc(key string) int64 {
	n, _ := s.counters.LoadOrStore(key, new(atomic.Int64))
	return n.Add(1)
}

// Counter reads counters[key], defaulting to 0 if absent.
func (s *Store) Counter(key string) int64 {
	n, ok := s.counters.Load(key)
	if !ok {
		return 0
	}
	return n.Load()
}

// GlobGet returns glob[key], or def if the key is absent.
func (s *Store) GlobGet(key string, def any) any {
	if v, ok := s.glob.Load(key); ok {
		return v
	}
	return def
}

// GlobSet assigns glob[key] = value.
func (s *Store) GlobSet(key string, value any) {
	s.glob.Store(key, value)
}

// GlobContains reports whether key is present in glob.
func (s *Store) GlobContains(key string) bool {
	_, ok := s.glob.Load(key)
	return ok
}

// GlobDelete removes key from glob, if present.
func (s *Store) GlobDelete(key string) {
	s.glob.Delete(key)
}

// Counters returns a snapshot of every counter key/value, for diagnostics
// and metrics export. Order is unspecified.
func (s *Store) Counters() map[string]int64 {
	out := make(map[string]int64)
	s.counters.Range(func(key string, val *atomic.Int64) bool {
		out[key] = val.Load()
		return true
	})
	return out
}
