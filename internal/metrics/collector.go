package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is a point-in-time view of the transfer counters
type Snapshot struct {
	SuccessTotal       int64   `json:"transfer_success_total"`
	FailureTotal       int64   `json:"transfer_failure_total"`
	SuccessRate        float64 `json:"transfer_success_rate"`
	RetryCount         int64   `json:"retry_count"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	TotalBytes         int64   `json:"total_bytes_transferred"`
}

// Collector collects and exposes metrics. Prometheus series feed the
// /metrics endpoint; a mutex-guarded copy of the counters backs the
// health report, which needs readable values.
type Collector struct {
	transfersTotal *prometheus.CounterVec
	retriesTotal   prometheus.Counter
	bytesTotal     prometheus.Counter
	duration       prometheus.Histogram
	registry       *prometheus.Registry

	mu           sync.RWMutex
	successTotal int64
	failureTotal int64
	retryCount   int64
	durationSum  float64
	totalBytes   int64
}

// New creates a new metrics collector with its own registry
func New() *Collector {
	c := &Collector{
		transfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_events_total",
				Help: "Total number of transfer events processed",
			},
			[]string{"status"},
		),
		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "transfer_retries_total",
				Help: "Total number of transfer retry attempts",
			},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "transfer_bytes_total",
				Help: "Total bytes transferred",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transfer_duration_seconds",
				Help:    "Time taken to complete a transfer event",
				Buckets: prometheus.DefBuckets,
			},
		),
		registry: prometheus.NewRegistry(),
	}

	// Register metrics
	c.registry.MustRegister(c.transfersTotal)
	c.registry.MustRegister(c.retriesTotal)
	c.registry.MustRegister(c.bytesTotal)
	c.registry.MustRegister(c.duration)

	return c
}

// RecordSuccess records a completed transfer with its duration and size
func (c *Collector) RecordSuccess(duration time.Duration, bytes int64) {
	c.transfersTotal.WithLabelValues("success").Inc()
	c.bytesTotal.Add(float64(bytes))
	c.duration.Observe(duration.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.successTotal++
	c.durationSum += duration.Seconds()
	c.totalBytes += bytes
}

// RecordFailure records a transfer that exhausted all attempts
func (c *Collector) RecordFailure() {
	c.transfersTotal.WithLabelValues("failure").Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureTotal++
}

// RecordRetry records a retried attempt
func (c *Collector) RecordRetry() {
	c.retriesTotal.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryCount++
}

// Snapshot returns the current counter values. With no completed
// events the success rate reports 100.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rate := 100.0
	if total := c.successTotal + c.failureTotal; total > 0 {
		rate = float64(c.successTotal) / float64(total) * 100
	}

	avg := 0.0
	if c.successTotal > 0 {
		avg = c.durationSum / float64(c.successTotal)
	}

	return Snapshot{
		SuccessTotal:       c.successTotal,
		FailureTotal:       c.failureTotal,
		SuccessRate:        rate,
		RetryCount:         c.retryCount,
		AvgDurationSeconds: avg,
		TotalBytes:         c.totalBytes,
	}
}

// Registry returns the prometheus registry backing /metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
