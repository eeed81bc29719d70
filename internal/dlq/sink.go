package dlq

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry is one exhausted event handed to the dead-letter sink
type Entry struct {
	EventID      string          `json:"eventId"`
	Event        json.RawMessage `json:"event"`
	Error        string          `json:"error"`
	Timestamp    time.Time       `json:"timestamp"`
	AttemptsMade int             `json:"attemptsMade"`
}

// Sink receives events that exhausted their attempts. The engine
// publishes exactly one entry per exhausted event, synchronously.
type Sink interface {
	Publish(ctx context.Context, entry *Entry) error
	Size() (int, error)
	Close() error
}

// MemorySink accumulates entries in memory for the process lifetime
type MemorySink struct {
	mu      sync.Mutex
	entries []*Entry
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Publish appends an entry
func (s *MemorySink) Publish(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Size returns the number of accumulated entries
func (s *MemorySink) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// Entries returns a copy of the accumulated entries
func (s *MemorySink) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Close is a no-op for the in-memory sink
func (s *MemorySink) Close() error {
	return nil
}
