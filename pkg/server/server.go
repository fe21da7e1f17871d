package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/limits/ratelimit"
	"mercator-hq/throttle/pkg/security/auth"
	"mercator-hq/throttle/pkg/server/middleware"
	"mercator-hq/throttle/pkg/telemetry/health"
	"mercator-hq/throttle/pkg/telemetry/metrics"
	"mercator-hq/throttle/pkg/telemetry/tracing"
)

// Limiters is the subset of *limits.Manager served over HTTP.
type Limiters interface {
	Hit(ctx context.Context, name string) error
	Ask(ctx context.Context, name string, n int64) (time.Duration, error)
	Status(ctx context.Context, name string) (limits.LimiterInfo, error)
	Names() []string
}

// Options configures a Server.
type Options struct {
	Server   config.ServerConfig
	Metrics  config.MetricsConfig
	Limiters Limiters

	// Collector serves the metrics endpoint and records HTTP request
	// metrics. Required when Metrics.Enabled.
	Collector *metrics.Collector

	// Health runs the readiness checks. A "limiters" check is always added.
	Health *health.Checker

	// TLS, when set, serves HTTPS.
	TLS *tls.Config

	// Tracer, when set, starts a span per request.
	Tracer *tracing.Tracer

	// Auth, when set, guards the /v1 routes. Health, readiness, and
	// metrics stay open.
	Auth *auth.Validator

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server exposes a set of limiters over HTTP.
type Server struct {
	cfg        config.ServerConfig
	metrics    config.MetricsConfig
	limiters   Limiters
	collector  *metrics.Collector
	health     *health.Checker
	tlsConfig  *tls.Config
	auth       *auth.Validator
	tracer     *tracing.Tracer
	inFlight   *ratelimit.InFlight
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server. It does not listen until Start.
func NewServer(opts Options) (*Server, error) {
	if opts.Limiters == nil {
		return nil, fmt.Errorf("server requires limiters")
	}
	if opts.Metrics.Enabled && opts.Collector == nil {
		return nil, fmt.Errorf("metrics enabled without a collector")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	checker := opts.Health
	if checker == nil {
		checker = health.New(opts.Server.RequestTimeout)
	}

	s := &Server{
		cfg:          opts.Server,
		metrics:      opts.Metrics,
		limiters:     opts.Limiters,
		collector:    opts.Collector,
		health:       checker,
		tlsConfig:    opts.TLS,
		auth:         opts.Auth,
		tracer:       opts.Tracer,
		inFlight:     ratelimit.NewInFlight(opts.Server.MaxInFlight),
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
	checker.RegisterCheck("limiters", s.checkLimiters)
	return s, nil
}

// Start listens on the configured address and blocks until ctx is done, a
// SIGINT/SIGTERM arrives, Stop is called, or the listener fails. Every path
// except a listener failure ends in a graceful Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting throttle server",
			"address", ln.Addr().String(),
			"tls", s.tlsConfig != nil,
			"auth", s.auth != nil,
			"metrics_enabled", s.metrics.Enabled,
		)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown gracefully shuts down the server, waiting at most
// ShutdownTimeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.cfg.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.cfg.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
			defer cancel()
		}

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("throttle server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.routes()
	if s.collector != nil {
		handler = s.collector.Instrument(handler)
	}
	handler = tracing.Middleware(s.tracer)(handler)
	handler = middleware.MaxInFlight(s.inFlight)(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// checkLimiters fails unless every limiter answers a status read.
func (s *Server) checkLimiters(ctx context.Context) error {
	for _, name := range s.limiters.Names() {
		if _, err := s.limiters.Status(ctx, name); err != nil && !errors.Is(err, limits.ErrUnknownLimiter) {
			return fmt.Errorf("limiter %s: %w", name, err)
		}
	}
	return nil
}
