// Package api provides the HTTP API server of HardbanRecords Lab.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
	"github.com/hardbanrecords/hardban-lab/internal/auth"
	"github.com/hardbanrecords/hardban-lab/internal/chapters"
	"github.com/hardbanrecords/hardban-lab/internal/events"
	"github.com/hardbanrecords/hardban-lab/internal/ratelimit"
	"github.com/hardbanrecords/hardban-lab/internal/rights"
	"github.com/hardbanrecords/hardban-lab/internal/storage"
)

type (
	// HealthChecker reports whether a backing service is reachable.
	// Satisfied by *storage.Connection.
	HealthChecker interface {
		HealthCheck(ctx context.Context) error
	}

	// Dependencies are the runtime collaborators of the server. Nil stores disable
	// their routes; a nil Tokens disables authentication.
	Dependencies struct {
		Rights      rights.Store
		Chapters    chapters.Store
		ServiceKeys storage.ServiceKeyStore
		Tokens      *auth.TokenService
		Limits      *ratelimit.Registry
		Publisher   events.Publisher
		CORS        *middleware.CORSConfig
		Health      HealthChecker
		Logger      *slog.Logger
	}

	// Server represents the HTTP API server.
	Server struct {
		httpServer *http.Server
		logger     *slog.Logger
		config     *ServerConfig
		startTime  time.Time
		deps       Dependencies

		rightsMapper  *rights.Mapper
		chapterMapper *chapters.Mapper

		now func() time.Time
	}
)

// NewServer creates a new HTTP server instance with structured logging and middleware stack.
//
// Configuration (what) and dependencies (how) are passed separately: cfg holds ports,
// timeouts and limits, deps holds stores, the token service, the rate limit registry
// and the webhook publisher.
func NewServer(cfg *ServerConfig, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
	}

	if deps.CORS == nil {
		deps.CORS = middleware.LoadCORSConfig()
	}

	server := &Server{
		logger:        logger,
		config:        cfg,
		deps:          deps,
		rightsMapper:  rights.NewMapper(logger),
		chapterMapper: chapters.NewMapper(logger),
		now:           time.Now,
	}

	mux := http.NewServeMux()
	server.setupRoutes(mux)

	if deps.Tokens == nil {
		logger.Warn("Token service not configured - authentication middleware disabled")
	}

	if deps.Limits == nil {
		logger.Warn("Rate limit registry not configured - rate limiting disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - id for every response, including rejections
	//   2. Recovery - catch panics in all downstream middleware
	//   3. Metrics - count every request, rejected or not
	//   4. SecurityHeaders - path-scoped headers before any early return
	//   5. CORS - refuse disallowed origins before any work is done
	//   6. Authentication - attach the caller or the rejected credential; routes
	//      rate limit first and enforce auth after
	//   7. RequestLogger - log requests that reached routing
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithMetrics(),
		middleware.WithSecurityHeaders(),
		middleware.WithCORS(deps.CORS, logger),
		middleware.WithAuthentication(tokenVerifier(deps.Tokens), deps.ServiceKeys, logger),
		middleware.WithRequestLogger(logger),
	)

	server.httpServer = &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return server
}

// tokenVerifier keeps a nil *auth.TokenService from becoming a non-nil interface.
func tokenVerifier(tokens *auth.TokenService) middleware.TokenVerifier {
	if tokens == nil {
		return nil
	}

	return tokens
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting HardbanRecords Lab API server",
			slog.String("address", s.config.Address()),
			slog.String("environment", s.deps.CORS.Environment.String()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal",
			slog.String("signal", sig.String()),
		)

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server and releases the rate limit stores,
// the webhook publisher and the service key store.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stops the memory store janitor and the Redis client.
	if s.deps.Limits != nil {
		s.closeResource("rate limit registry", s.deps.Limits)
	}

	// Flushes pending Kafka writes.
	if s.deps.Publisher != nil {
		s.closeResource("webhook publisher", s.deps.Publisher)
	}

	if closer, ok := s.deps.ServiceKeys.(io.Closer); ok {
		s.closeResource("service key store", closer)
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}

func (s *Server) closeResource(name string, closer io.Closer) {
	s.logger.Info("Closing " + name)

	if err := closer.Close(); err != nil {
		s.logger.Error("Failed to close "+name, slog.String("error", err.Error()))

		return
	}

	s.logger.Info(name + " closed successfully")
}
