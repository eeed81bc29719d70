package queue

import (
	"context"
	"sync"
	"time"

	"github.com/afthar/transfer-agent/internal/event"
)

// Handler processes one delivered event. The returned bool mirrors the
// engine contract: true when transferred or already processed, false
// when exhausted. The event counts as handled either way.
type Handler func(ctx context.Context, ev *event.TransferEvent) bool

// Source delivers events to a handler until the context is cancelled
// or the underlying transport closes
type Source interface {
	Consume(ctx context.Context, fn Handler) error
	Close() error
}

// Publisher enqueues transfer events
type Publisher interface {
	Publish(ctx context.Context, ev *event.TransferEvent) error
	Close() error
}

// Memory is an in-process queue backed by a buffered channel, used for
// local runs and tests
type Memory struct {
	ch        chan *event.TransferEvent
	closeOnce sync.Once
}

// NewMemory creates a memory queue holding up to size events
func NewMemory(size int) *Memory {
	return &Memory{ch: make(chan *event.TransferEvent, size)}
}

// Publish enqueues an event, blocking while the queue is full
func (m *Memory) Publish(ctx context.Context, ev *event.TransferEvent) error {
	select {
	case m.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next event. It returns nil once the timeout
// elapses with nothing queued, or once the queue is closed and
// drained.
func (m *Memory) Receive(ctx context.Context, timeout time.Duration) (*event.TransferEvent, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-m.ch:
		return ev, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the number of queued events
func (m *Memory) Size() int {
	return len(m.ch)
}

// Close closes the queue. Queued events can still be received.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.ch) })
	return nil
}
