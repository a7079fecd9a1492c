package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"fastllm-hq/turbine/pkg/config"
	"fastllm-hq/turbine/pkg/diagnostics"
	"fastllm-hq/turbine/pkg/storage"
	"fastllm-hq/turbine/pkg/telemetry/health"
	"fastllm-hq/turbine/pkg/telemetry/metrics"
	"fastllm-hq/turbine/pkg/telemetry/tracing"
)

// checkRequestsPerSecond bounds /healthz and /readyz.
const checkRequestsPerSecond = 50

// Diagnostics is the subset of diagnostics.Diagnostics the server reads.
type Diagnostics interface {
	HealthCheck(ctx context.Context) diagnostics.HealthReport
	GetPerformanceStats() diagnostics.PerformanceStats
}

// Features exposes and updates feature flags.
type Features interface {
	Status() map[string]bool
	Set(name string, enabled bool)
}

// Deps are the components the server exposes. Checker, Diagnostics and
// Features are required; the rest are optional.
type Deps struct {
	Checker     *health.Checker
	Diagnostics Diagnostics
	Features    Features

	// Metrics serves MetricsPath when set.
	Metrics     *metrics.Collector
	MetricsPath string

	// Snapshots serves /snapshots when set.
	Snapshots storage.Backend

	// Tracer wraps every request in a span.
	Tracer *tracing.Tracer

	Version   string
	Commit    string
	BuildTime string
}

// Server is the diagnostics HTTP server.
type Server struct {
	config     *config.ServerConfig
	deps       Deps
	logger     *slog.Logger
	httpServer *http.Server

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// New creates a server. It does not listen until Start.
func New(cfg *config.ServerConfig, deps Deps) *Server {
	if deps.Tracer == nil {
		deps.Tracer = tracing.Noop()
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}

	return &Server{
		config: cfg,
		deps:   deps,
		logger: slog.Default().With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled or the listener fails. A cancelled context triggers a graceful
// shutdown bounded by the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting diagnostics server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("diagnostics server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", health.RateLimitedHandler(s.deps.Checker.LivenessHandler(), checkRequestsPerSecond))
	mux.Handle("GET /readyz", health.RateLimitedHandler(s.deps.Checker.ReadinessHandler(), checkRequestsPerSecond))
	mux.Handle("GET /version", health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /features", s.handleFeatures)
	mux.HandleFunc("PUT /features/{name}", s.handleSetFeature)

	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.deps.MetricsPath, s.deps.Metrics.Handler())
	}
	if s.deps.Snapshots != nil {
		mux.HandleFunc("GET /snapshots", s.handleSnapshots)
	}

	var handler http.Handler = mux
	handler = tracing.HTTPMiddleware(s.deps.Tracer, handler)
	handler = RequestIDMiddleware(handler)
	handler = LoggingMiddleware(s.logger, handler)
	handler = RecoveryMiddleware(s.logger, handler)

	return handler
}

// handleHealth serves the full health report. It responds 503 when the
// report is not overall healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Diagnostics.HealthCheck(r.Context())

	code := http.StatusOK
	if !report.OverallHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Diagnostics.GetPerformanceStats())
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Features.Status())
}

type setFeatureRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleSetFeature(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req setFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `request body must be {"enabled": true|false}`)
		return
	}

	s.deps.Features.Set(name, *req.Enabled)
	s.logger.InfoContext(r.Context(), "feature flag updated", "feature", name, "enabled", *req.Enabled)

	writeJSON(w, http.StatusOK, s.deps.Features.Status())
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snaps, err := s.deps.Snapshots.List(r.Context(), limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if snaps == nil {
		snaps = []*storage.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeJSON encodes v before writing the header so an unencodable value
// yields a 500 rather than an empty success.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}
