// Package health provides the diagnostics HTTP endpoints: liveness,
// breaker state and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gardentiller/tiller/internal/resilience"
)

// Server provides HTTP endpoints for run diagnostics.
type Server struct {
	registry *resilience.Registry
	server   *http.Server
}

// NewServer creates a new diagnostics server.
func NewServer(registry *resilience.Registry, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		registry: registry,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/breakers", s.handleBreakers)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth reports degraded once any breaker has left the closed
// state. Open breakers mean a whole operation class is failing, which
// operators want surfaced before the run report lands.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	open := 0
	for _, b := range s.registry.Snapshot() {
		if b.State != resilience.StateClosed.String() {
			status = "degraded"
			open++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":       status,
		"breakers_out": open,
	})
}

func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.registry.Snapshot())
}
