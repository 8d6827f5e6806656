// Package server implements the HTTP servers for health checks and metrics.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	GetStatus() map[string]string
}

// Config contains HTTP server settings.
type Config struct {
	HealthPort     int
	MetricsEnabled bool
	MetricsPort    int
	MetricsPath    string
}

// Server runs the health server and, when enabled, the metrics server.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *slog.Logger
}

// NewServer creates the HTTP servers. They start listening on Start.
func NewServer(cfg Config, healthChecker HealthChecker, registry *prometheus.Registry, logger *slog.Logger) *Server {
	s := &Server{
		healthServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HealthPort),
			Handler:      HealthMux(healthChecker, logger),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	if cfg.MetricsEnabled {
		s.metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:      MetricsMux(cfg.MetricsPath, registry),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s
}

// HealthMux routes /health/live and /health/ready.
func HealthMux(checker HealthChecker, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", LivenessHandler(checker, logger))
	mux.HandleFunc("GET /health/ready", ReadinessHandler(checker, logger))
	return mux
}

// MetricsMux serves the registry at path, "/metrics" when empty.
func MetricsMux(path string, registry *prometheus.Registry) *http.ServeMux {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	return mux
}

// Start starts the servers in the background.
func (s *Server) Start() {
	s.serve("health", s.healthServer)
	if s.metricsServer != nil {
		s.serve("metrics", s.metricsServer)
	}
}

func (s *Server) serve(name string, srv *http.Server) {
	go func() {
		s.logger.Info("starting "+name+" server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error(name+" server failed", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down the servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	servers := []*http.Server{s.healthServer}
	if s.metricsServer != nil {
		servers = append(servers, s.metricsServer)
	}

	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			errChan <- srv.Shutdown(ctx)
		}()
	}

	var errs []error
	for range servers {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}
