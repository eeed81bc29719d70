package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/afthar/transfer-agent/internal/metrics"
)

// Server exposes health, readiness, and prometheus metrics over HTTP
type Server struct {
	reporter   *Reporter
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the HTTP server with all routes mounted
func NewServer(addr string, reporter *Reporter, collector *metrics.Collector, logger *zap.Logger) *Server {
	s := &Server{
		reporter: reporter,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReadiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}

	return s
}

// handleHealth serves GET /health. Always 200; the status field in the
// body conveys health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.reporter.Health())
}

// handleReadiness serves GET /health/ready
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.reporter.Readiness())
}

// Handler returns the mounted routes, used by tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Health server listening", zap.String("addr", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
