package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StateFunc returns the session snapshot served on /state.
type StateFunc func() any

// HealthFunc reports whether the session is healthy and why not.
type HealthFunc func() (bool, string)

// Server serves Prometheus metrics, a health probe and the session
// state snapshot.
type Server struct {
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
	health     HealthFunc
	state      StateFunc
}

// NewServer creates the server. state and health may be nil.
func NewServer(port int, metricsPath string, state StateFunc, health HealthFunc, logger *slog.Logger) *Server {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		startTime: time.Now(),
		logger:    logger,
		health:    health,
		state:     state,
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.Handler())
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/state", s.stateHandler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start starts serving in the background.
func (s *Server) Start() {
	s.logger.Info("starting metrics server", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthy, reason := true, ""
	if s.health != nil {
		healthy, reason = s.health()
	}

	resp := map[string]string{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		resp["status"] = "unhealthy"
		resp["reason"] = reason
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.state())
}
