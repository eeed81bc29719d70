package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/afthar/transfer-agent/internal/checkpoint"
	"github.com/afthar/transfer-agent/internal/dlq"
	"github.com/afthar/transfer-agent/internal/event"
	"github.com/afthar/transfer-agent/internal/metrics"
	"github.com/afthar/transfer-agent/internal/storage"

	"go.uber.org/zap"
)

// Config contains engine configuration
type Config struct {
	Retry      RetryPolicy
	DeadLetter bool
}

// Processor runs transfer events through the download/verify/upload
// state machine with bounded retry and idempotency tracking
type Processor struct {
	config     Config
	store      storage.Client
	processed  checkpoint.Store
	deadLetter dlq.Sink
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewProcessor creates a new event processor
func NewProcessor(
	cfg Config,
	store storage.Client,
	processed checkpoint.Store,
	deadLetter dlq.Sink,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		config:     cfg,
		store:      store,
		processed:  processed,
		deadLetter: deadLetter,
		metrics:    collector,
		logger:     logger,
	}
}

// ProcessEvent processes a single transfer event. It returns true when
// the transfer succeeded or the event was already processed, false
// when every attempt failed. Errors never escape; an exhausted event
// ends up in the dead-letter sink instead.
func (p *Processor) ProcessEvent(ctx context.Context, ev *event.TransferEvent) bool {
	logger := p.logger.With(
		zap.String("event_id", ev.EventID),
		zap.String("correlation_id", ev.CorrelationID),
	)

	// Idempotency check. A redelivered event must not touch storage,
	// metrics, or the dead-letter path again.
	if seen, err := p.processed.Seen(ev.EventID); err != nil {
		logger.Error("Failed to read processed ledger, treating event as new", zap.Error(err))
	} else if seen {
		logger.Info("Event already processed, skipping")
		return true
	}

	logger.Info("Starting transfer",
		zap.String("source", locationString(ev.Source)),
		zap.String("destination", locationString(ev.Destination)),
	)

	startTime := time.Now()

	var lastErr error
	for attempt := 1; attempt <= p.config.Retry.MaxAttempts; attempt++ {
		bytesCopied, err := p.transfer(ctx, ev)
		if err == nil {
			p.metrics.RecordSuccess(time.Since(startTime), bytesCopied)
			p.markProcessed(ev.EventID, logger)
			logger.Info("Transfer completed successfully",
				zap.Int64("bytes", bytesCopied),
				zap.Int("attempt", attempt),
				zap.Duration("duration", time.Since(startTime)),
			)
			return true
		}

		lastErr = err
		logger.Warn("Transfer attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.config.Retry.MaxAttempts),
			zap.Error(err),
		)

		if attempt < p.config.Retry.MaxAttempts {
			p.metrics.RecordRetry()
			time.Sleep(p.config.Retry.Backoff(attempt))
		}
	}

	p.metrics.RecordFailure()
	if p.config.DeadLetter {
		p.publishDeadLetter(ctx, ev, lastErr, logger)
	}
	logger.Error("Transfer failed after all attempts",
		zap.Int("attempts", p.config.Retry.MaxAttempts),
		zap.Error(lastErr),
	)
	return false
}

// transfer performs a single attempt: download, verify, upload. No
// retry happens inside.
func (p *Processor) transfer(ctx context.Context, ev *event.TransferEvent) (int64, error) {
	data, err := p.store.Download(ctx, ev.Source.Provider, ev.Source.Bucket, ev.Source.Key)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}

	// Checksum mismatch is an ordinary attempt failure, not a
	// distinct error class
	if expected, ok := ev.ChecksumSHA256(); ok {
		sum := sha256.Sum256(data)
		calculated := hex.EncodeToString(sum[:])
		if !strings.EqualFold(calculated, expected) {
			return 0, fmt.Errorf("checksum mismatch: expected=%s calculated=%s", expected, calculated)
		}
	}

	if err := p.store.Upload(ctx, ev.Destination.Provider, ev.Destination.Bucket, ev.Destination.Key, data); err != nil {
		return 0, fmt.Errorf("upload failed: %w", err)
	}

	return int64(len(data)), nil
}

func (p *Processor) markProcessed(eventID string, logger *zap.Logger) {
	if err := p.processed.Mark(eventID); err != nil {
		logger.Error("Failed to mark event as processed", zap.Error(err))
	}
}

func (p *Processor) publishDeadLetter(ctx context.Context, ev *event.TransferEvent, lastErr error, logger *zap.Logger) {
	payload, err := event.Marshal(ev)
	if err != nil {
		logger.Error("Failed to serialize event for dead-letter entry", zap.Error(err))
	}

	entry := &dlq.Entry{
		EventID:      ev.EventID,
		Event:        payload,
		Error:        lastErr.Error(),
		Timestamp:    time.Now().UTC(),
		AttemptsMade: p.config.Retry.MaxAttempts,
	}

	if err := p.deadLetter.Publish(ctx, entry); err != nil {
		logger.Error("Failed to publish dead-letter entry", zap.Error(err))
		return
	}

	size, err := p.deadLetter.Size()
	if err != nil {
		logger.Error("Event sent to dead-letter sink")
		return
	}
	logger.Error("Event sent to dead-letter sink", zap.Int("dlq_size", size))
}

func locationString(l event.Location) string {
	return fmt.Sprintf("%s://%s/%s", l.Provider, l.Bucket, l.Key)
}
