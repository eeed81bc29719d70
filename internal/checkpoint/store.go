package checkpoint

import (
	"sync"
)

// Store records which event ids have already been completed. Seen and
// Mark bracket every transfer so redelivered events are acknowledged
// without touching storage again. Entries are never evicted.
type Store interface {
	Seen(eventID string) (bool, error)
	Mark(eventID string) error
	Count() (int64, error)
	Close() error
}

// MemoryStore keeps processed ids in memory for the process lifetime
type MemoryStore struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]struct{})}
}

// Seen reports whether the event id has been marked
func (s *MemoryStore) Seen(eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[eventID]
	return ok, nil
}

// Mark records the event id as completed
func (s *MemoryStore) Mark(eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[eventID] = struct{}{}
	return nil
}

// Count returns the number of marked ids
func (s *MemoryStore) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.ids)), nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
