// Package middleware provides the HTTP middleware of the HardbanRecords Lab API:
// request ids, panic recovery, security headers, the CORS policy gate,
// authentication, rate limiting, request logging and metrics.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hardbanrecords/hardban-lab/internal/storage"
)

type (
	// Option is a function that applies middleware to a handler.
	Option func(http.Handler) http.Handler
)

// Apply applies a chain of middleware options to a base handler.
// The first option becomes the outermost middleware.
//
// Example:
//
//	handler := middleware.Apply(mux,
//	    middleware.WithCorrelationID(),
//	    middleware.WithRecovery(logger),
//	    middleware.WithMetrics(),
//	    middleware.WithSecurityHeaders(),
//	    middleware.WithCORS(corsConfig, logger),
//	    middleware.WithAuthentication(tokens, keys, logger),
//	    middleware.WithRequestLogger(logger),
//	)
func Apply(handler http.Handler, options ...Option) http.Handler {
	for i := len(options) - 1; i >= 0; i-- {
		handler = options[i](handler)
	}

	return handler
}

// WithCorrelationID returns an option that adds correlation ID middleware.
func WithCorrelationID() Option {
	return func(next http.Handler) http.Handler {
		return CorrelationID()(next)
	}
}

// WithRecovery returns an option that adds panic recovery middleware.
func WithRecovery(logger *slog.Logger) Option {
	return func(next http.Handler) http.Handler {
		return Recovery(logger)(next)
	}
}

// WithMetrics returns an option that records request metrics.
func WithMetrics() Option {
	return func(next http.Handler) http.Handler {
		return Metrics()(next)
	}
}

// WithSecurityHeaders returns an option that adds path-scoped security headers.
func WithSecurityHeaders() Option {
	return func(next http.Handler) http.Handler {
		return SecurityHeaders()(next)
	}
}

// WithCORS returns an option that adds the CORS policy gate.
func WithCORS(cfg *CORSConfig, logger *slog.Logger) Option {
	return func(next http.Handler) http.Handler {
		return CORS(cfg, logger)(next)
	}
}

// WithAuthentication returns an option that resolves the caller from a bearer token
// or service key. If tokens is nil, this option is skipped (no middleware applied).
func WithAuthentication(tokens TokenVerifier, keys storage.ServiceKeyStore, logger *slog.Logger) Option {
	if tokens == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return Authenticate(tokens, keys, logger)(next)
	}
}

// WithRateLimit returns an option that adds rate limiting middleware.
// If limiter is nil, this option is skipped (no middleware applied).
func WithRateLimit(limiter Limiter, logger *slog.Logger) Option {
	if limiter == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return RateLimit(limiter, logger)(next)
	}
}

// WithRequestLogger returns an option that adds request logging middleware.
func WithRequestLogger(logger *slog.Logger) Option {
	return func(next http.Handler) http.Handler {
		return RequestLogger(logger)(next)
	}
}
