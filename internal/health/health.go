package health

import (
	"time"

	"github.com/afthar/transfer-agent/internal/dlq"
	"github.com/afthar/transfer-agent/internal/metrics"
)

// degradedThreshold is the success-rate percentage at or below which
// the worker reports degraded
const degradedThreshold = 95.0

// Status is the health report body
type Status struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Metrics   metrics.Snapshot `json:"metrics"`
	DLQSize   int              `json:"dlq_size"`
}

// Readiness is the readiness report body
type Readiness struct {
	Ready     bool   `json:"ready"`
	Timestamp string `json:"timestamp"`
}

// Reporter derives health signals from the metrics counters and the
// dead-letter sink. It makes no external calls.
type Reporter struct {
	metrics *metrics.Collector
	sink    dlq.Sink
}

// NewReporter creates a new health reporter
func NewReporter(collector *metrics.Collector, sink dlq.Sink) *Reporter {
	return &Reporter{
		metrics: collector,
		sink:    sink,
	}
}

// Health reports healthy while the success rate stays above 95
// percent, degraded otherwise
func (h *Reporter) Health() Status {
	snapshot := h.metrics.Snapshot()

	status := "healthy"
	if snapshot.SuccessRate <= degradedThreshold {
		status = "degraded"
	}

	size, err := h.sink.Size()
	if err != nil {
		size = 0
	}

	return Status{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Metrics:   snapshot,
		DLQSize:   size,
	}
}

// Readiness always reports ready. The worker accepts work as soon as
// it is constructed; readiness is not coupled to dependency health.
func (h *Reporter) Readiness() Readiness {
	return Readiness{
		Ready:     true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
