package worker

import (
	"context"
	"sync"

	"github.com/afthar/transfer-agent/internal/event"

	"go.uber.org/zap"
)

// Pool manages a pool of workers draining an event channel
type Pool struct {
	size      int
	processor *Processor
	logger    *zap.Logger
}

// NewPool creates a new worker pool
func NewPool(size int, processor *Processor, logger *zap.Logger) *Pool {
	return &Pool{
		size:      size,
		processor: processor,
		logger:    logger,
	}
}

// Start starts the worker pool
func (p *Pool) Start(ctx context.Context, events <-chan *event.TransferEvent, wg *sync.WaitGroup) {
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go p.worker(ctx, i, events, wg)
	}
}

func (p *Pool) worker(ctx context.Context, id int, events <-chan *event.TransferEvent, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Info("Worker started")

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				logger.Info("Worker finished - no more events")
				return
			}

			p.processor.ProcessEvent(ctx, ev)

		case <-ctx.Done():
			logger.Info("Worker stopped - context cancelled")
			return
		}
	}
}
