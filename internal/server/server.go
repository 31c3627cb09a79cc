package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pepper-assistant/pepper/internal/auth"
	"github.com/pepper-assistant/pepper/internal/instrumentation"
)

const (
	// DefaultReadHeaderTimeout bounds how long reading request headers may take.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds writing a response. Provider exchanges with
	// retries fit well inside this.
	DefaultWriteTimeout = 60 * time.Second

	// DefaultIdleTimeout closes idle keep-alive connections.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultShutdownTimeout is the drain window for graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// Config wires the HTTP server's collaborators.
type Config struct {
	// Orchestrator drives the auth flow. Required.
	Orchestrator *auth.Orchestrator

	// Version is reported on the root endpoint.
	Version string

	// MissingVars lists required configuration that is absent; surfaced by
	// the readiness endpoint so a misdeployed instance reports unhealthy
	// instead of failing requests opaquely.
	MissingVars []string

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Metrics records HTTP request metrics (optional).
	Metrics *instrumentation.Metrics
}

// Server exposes the auth orchestrator over HTTP. The surface is the thin
// router in front of the core: it parses untrusted input, calls exactly one
// orchestrator operation, and maps typed errors to status codes.
type Server struct {
	orchestrator *auth.Orchestrator
	health       *HealthChecker
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
	version      string
	httpServer   *http.Server
}

// New creates the HTTP server.
func New(config Config) (*Server, error) {
	if config.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	return &Server{
		orchestrator: config.Orchestrator,
		health:       NewHealthChecker(config.MissingVars),
		logger:       logger,
		metrics:      metrics,
		version:      config.Version,
	}, nil
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.metricsMiddleware)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodGet)
	r.HandleFunc("/auth/callback", s.handleCallback).Methods(http.MethodGet)
	r.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/status/{user_id}", s.handleStatus).Methods(http.MethodGet)

	return r
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.health.SetReady(true)
	s.logger.Info("starting auth server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown auth server: %w", err)
	}
	return nil
}
