package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/afthar/transfer-agent/internal/checkpoint"
	"github.com/afthar/transfer-agent/internal/config"
	"github.com/afthar/transfer-agent/internal/dlq"
	"github.com/afthar/transfer-agent/internal/event"
	"github.com/afthar/transfer-agent/internal/health"
	"github.com/afthar/transfer-agent/internal/metrics"
	"github.com/afthar/transfer-agent/internal/queue"
	"github.com/afthar/transfer-agent/internal/storage"
	"github.com/afthar/transfer-agent/internal/worker"

	"go.uber.org/zap"
)

// Worker is the transfer agent: it wires the queue transport, the
// transfer engine, the stores, and the health server together.
type Worker struct {
	cfg        *config.Config
	logger     *zap.Logger
	router     *storage.Router
	processed  checkpoint.Store
	deadLetter dlq.Sink
	metrics    *metrics.Collector
	processor  *worker.Processor
	pool       *worker.Pool
	reporter   *health.Reporter
	server     *health.Server
	memQueue   *queue.Memory
	source     queue.Source
}

// New creates a new worker instance from configuration
func New(cfg *config.Config, logger *zap.Logger) (*Worker, error) {
	// Register one storage backend per configured provider
	router := storage.NewRouter()
	for name, p := range cfg.Providers {
		backend, err := newBackend(p)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend for provider %s: %w", name, err)
		}
		router.Register(event.Provider(name), backend)
	}

	// Create processed-event ledger
	processed, err := newCheckpointStore(cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	// Create dead-letter sink
	deadLetter, err := newDeadLetterSink(cfg.DLQ)
	if err != nil {
		processed.Close()
		return nil, fmt.Errorf("failed to create dead-letter sink: %w", err)
	}

	// Create metrics collector
	metricsCollector := metrics.New()

	// Create transfer engine
	processor := worker.NewProcessor(worker.Config{
		Retry: worker.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialDelayMs: cfg.Retry.InitialDelayMs,
			MaxDelayMs:     cfg.Retry.MaxDelayMs,
			Multiplier:     cfg.Retry.Multiplier,
		},
		DeadLetter: cfg.DLQ.Enabled,
	}, router, processed, deadLetter, metricsCollector, logger)

	workerPool := worker.NewPool(cfg.Queue.Workers, processor, logger)

	reporter := health.NewReporter(metricsCollector, deadLetter)
	server := health.NewServer(cfg.HTTP.Addr, reporter, metricsCollector, logger)

	w := &Worker{
		cfg:        cfg,
		logger:     logger,
		router:     router,
		processed:  processed,
		deadLetter: deadLetter,
		metrics:    metricsCollector,
		processor:  processor,
		pool:       workerPool,
		reporter:   reporter,
		server:     server,
	}

	switch cfg.Queue.Driver {
	case "amqp":
		source, err := queue.NewAMQPSource(queue.AMQPConfig{
			URL:        cfg.Queue.URL,
			Queue:      cfg.Queue.Name,
			Prefetch:   cfg.Queue.Prefetch,
			Workers:    cfg.Queue.Workers,
			DeclareDLX: cfg.Queue.DeclareDLX,
		}, logger)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to create queue source: %w", err)
		}
		w.source = source
	default:
		w.memQueue = queue.NewMemory(cfg.Queue.Workers * 2)
	}

	return w, nil
}

func newBackend(p config.Provider) (storage.Backend, error) {
	switch p.Driver {
	case "s3":
		return storage.NewMinIOBackend(storage.Config{
			Endpoint:  p.Endpoint,
			AccessKey: p.AccessKey,
			SecretKey: p.SecretKey,
			Secure:    p.Secure,
			Region:    p.Region,
		})
	case "fs":
		return storage.NewFSBackend(p.Root), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", p.Driver)
	}
}

func newCheckpointStore(cfg config.Checkpoint) (checkpoint.Store, error) {
	if cfg.Store == "bolt" {
		return checkpoint.NewBoltStore(cfg.Path)
	}
	return checkpoint.NewMemoryStore(), nil
}

func newDeadLetterSink(cfg config.DLQ) (dlq.Sink, error) {
	if cfg.Store == "sqlite" {
		return dlq.NewSQLiteSink(cfg.Path)
	}
	return dlq.NewMemorySink(), nil
}

// Run consumes events until the context is cancelled or, with the
// memory queue, until the queue drains
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting transfer worker",
		zap.String("queue_driver", w.cfg.Queue.Driver),
		zap.Int("workers", w.cfg.Queue.Workers),
		zap.Int("max_attempts", w.cfg.Retry.MaxAttempts),
		zap.Bool("dlq_enabled", w.cfg.DLQ.Enabled),
	)

	// Start health server in a goroutine with error handling
	go func() {
		if err := w.server.Start(); err != nil {
			w.logger.Error("Health server failed", zap.Error(err))
		}
	}()

	var err error
	if w.source != nil {
		err = w.source.Consume(ctx, w.processor.ProcessEvent)
	} else {
		err = w.runMemory(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := w.server.Shutdown(shutdownCtx); shutdownErr != nil {
		w.logger.Error("Failed to shut down health server", zap.Error(shutdownErr))
	}

	w.logger.Info("Transfer worker stopped")
	return err
}

// runMemory drains the in-process queue through the worker pool and
// returns when the queue stays empty past the receive timeout
func (w *Worker) runMemory(ctx context.Context) error {
	events := make(chan *event.TransferEvent, w.cfg.Queue.Workers*2)

	var wg sync.WaitGroup
	w.pool.Start(ctx, events, &wg)

	timeout := time.Duration(w.cfg.Queue.ReceiveTimeoutMs) * time.Millisecond

	var err error
feed:
	for {
		ev, recvErr := w.memQueue.Receive(ctx, timeout)
		if recvErr != nil {
			err = recvErr
			break
		}
		if ev == nil {
			// Queue drained
			break
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}

	close(events)
	wg.Wait()
	return err
}

// Publish enqueues an event on the in-process queue. Only the memory
// driver supports this; events for a broker go through the publisher.
func (w *Worker) Publish(ctx context.Context, ev *event.TransferEvent) error {
	if w.memQueue == nil {
		return fmt.Errorf("publishing requires the memory queue driver")
	}
	return w.memQueue.Publish(ctx, ev)
}

// Health returns the current health report
func (w *Worker) Health() health.Status {
	return w.reporter.Health()
}

// Close cleans up resources
func (w *Worker) Close() error {
	if w.source != nil {
		w.source.Close()
	}
	if w.memQueue != nil {
		w.memQueue.Close()
	}
	if w.processed != nil {
		w.processed.Close()
	}
	if w.deadLetter != nil {
		w.deadLetter.Close()
	}
	return nil
}
