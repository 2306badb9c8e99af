// Package lockset provides a table of per-key mutexes, used by package store
// to serialize concurrent Add calls for the same implementation digest
// within one process without blocking unrelated digests against each other.
package lockset

import "sync"

// Set is a table of per-key mutexes. The zero value is ready to use.
type Set struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	refcount int
}

// Lock blocks until the mutex for key is held and returns a function that
// releases it. The entry is removed from the table once no goroutine holds
// or is waiting on it, so Set does not grow unboundedly over a long-lived
// store's lifetime.
func (s *Set) Lock(key string) (unlock func()) {
	s.mu.Lock()
	if s.entries == nil {
		s.entries = make(map[string]*entry)
	}
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.refcount++
	s.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		s.mu.Lock()
		e.refcount--
		if e.refcount == 0 {
			delete(s.entries, key)
		}
		s.mu.Unlock()
	}
}
