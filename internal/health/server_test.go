package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/afthar/transfer-agent/internal/dlq"
	"github.com/afthar/transfer-agent/internal/metrics"
)

func newTestServer(t *testing.T) (*Server, *metrics.Collector, *dlq.MemorySink) {
	t.Helper()

	collector := metrics.New()
	sink := dlq.NewMemorySink()
	reporter := NewReporter(collector, sink)
	srv := NewServer("127.0.0.1:0", reporter, collector, zap.NewNop())
	return srv, collector, sink
}

func TestHealthEndpoint(t *testing.T) {
	srv, collector, sink := newTestServer(t)

	collector.RecordSuccess(2*time.Second, 128)
	require.NoError(t, sink.Publish(context.Background(), &dlq.Entry{EventID: "evt-1"}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "timestamp")
	assert.Equal(t, float64(1), body["dlq_size"])

	metricsBody, ok := body["metrics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), metricsBody["transfer_success_total"])
	assert.Equal(t, float64(0), metricsBody["transfer_failure_total"])
	assert.Equal(t, float64(100), metricsBody["transfer_success_rate"])
	assert.Equal(t, float64(2), metricsBody["avg_duration_seconds"])
	assert.Equal(t, float64(128), metricsBody["total_bytes_transferred"])
}

func TestHealthEndpointDegraded(t *testing.T) {
	srv, collector, _ := newTestServer(t)

	collector.RecordFailure()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// Degradation shows in the body, not the status code
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ready"])
	assert.Contains(t, body, "timestamp")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, collector, _ := newTestServer(t)

	collector.RecordSuccess(time.Second, 64)
	collector.RecordRetry()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	exposition := rec.Body.String()
	assert.Contains(t, exposition, `transfer_events_total{status="success"} 1`)
	assert.Contains(t, exposition, "transfer_retries_total 1")
	assert.Contains(t, exposition, "transfer_bytes_total 64")
	assert.Contains(t, exposition, "transfer_duration_seconds_count 1")
}
