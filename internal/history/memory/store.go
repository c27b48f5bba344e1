// Package memory keeps history in process memory, for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

// Store is a concurrency-safe in-memory history.
type Store struct {
	mu    sync.Mutex
	set   gazette.HistorySet
	saves int
}

// New returns a store seeded with locations.
func New(locations ...string) *Store {
	return &Store{set: gazette.NewHistorySet(locations...)}
}

// Load returns a copy of the stored set.
func (s *Store) Load(_ context.Context) (gazette.HistorySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Clone(), nil
}

// Save replaces the stored set with a copy of set.
func (s *Store) Save(_ context.Context, set gazette.HistorySet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = set.Clone()
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
