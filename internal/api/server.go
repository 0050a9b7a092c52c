// Package api serves the admin HTTP interface: neighbor tables, conflict
// history, static entry management, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/athena-arpd/athena-arpd/internal/daemon"
	"github.com/athena-arpd/athena-arpd/internal/metrics"
)

// Server is the admin API server.
type Server struct {
	d      *daemon.Daemon
	auth   *AuthMiddleware
	logger *slog.Logger
	listen string
	http   *http.Server
}

// NewServer creates the API server around a running daemon.
func NewServer(d *daemon.Daemon, listen, tokenHash string, logger *slog.Logger) *Server {
	s := &Server{
		d:      d,
		auth:   NewAuthMiddleware(tokenHash, logger),
		logger: logger,
		listen: listen,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/interfaces", s.auth.RequireAuth(s.handleInterfaces))
	mux.HandleFunc("GET /api/v1/neighbors", s.auth.RequireAuth(s.handleNeighbors))
	mux.HandleFunc("GET /api/v1/conflicts", s.auth.RequireAuth(s.handleConflicts))
	mux.HandleFunc("GET /api/v1/lookup", s.auth.RequireAuth(s.handleLookup))
	mux.HandleFunc("POST /api/v1/resolve", s.auth.RequireAuth(s.handleResolve))
	mux.HandleFunc("POST /api/v1/static", s.auth.RequireAuth(s.handleAddStatic))
	mux.HandleFunc("DELETE /api/v1/static", s.auth.RequireAuth(s.handleRemoveStatic))
	mux.HandleFunc("POST /api/v1/announce", s.auth.RequireAuth(s.handleAnnounce))
	mux.HandleFunc("POST /api/v1/dad", s.auth.RequireAuth(s.handleStartDAD))

	s.http = &http.Server{
		Addr:         listen,
		Handler:      instrument(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// statusRecorder captures the response code for the metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.APIRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
	})
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return nil, fmt.Errorf("binding API listener %s: %w", s.listen, err)
	}
	return ln, nil
}

// Serve runs the server on a bound listener until Stop.
func (s *Server) Serve(ln net.Listener) error {
	err := s.http.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn("API shutdown failed", "error", err)
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// JSONError writes a JSON error body with the given status.
func JSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
