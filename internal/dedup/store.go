// Package dedup provides the identity set shared by both ingestion origins.
package dedup

import (
	"sync"
)

// Store is a concurrency-safe set of incident identities already emitted.
// The set grows monotonically for the process lifetime: entries are never
// evicted and nothing is persisted, so a restart starts clean.
//
// Keys are global, not scoped per source: a push event and a polled entry
// carrying the same provider id are the same incident and must collide.
// Two unrelated providers emitting an identical id would collide too;
// accepted trade-off.
type Store struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewStore() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// CheckAndMark tests and inserts id under a single mutex hold, so that
// concurrent ingestions of the same identity resolve to exactly one winner.
// Returns true if the id was newly marked, false if it was already seen.
// The emit decision must use this, never Contains followed by Mark.
func (s *Store) CheckAndMark(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Contains reports whether id has been marked. Observability and tests
// only; not safe as the first half of a check-then-mark pair.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// Mark inserts id. Idempotent.
func (s *Store) Mark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[id] = struct{}{}
}

// Size returns the count of distinct identities ever marked.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
