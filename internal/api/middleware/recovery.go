package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery creates a middleware that recovers from panics, logs them with the
// stack trace and answers with an RFC 7807 500.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func(ctx context.Context) {
				rec := recover()
				if rec == nil {
					return
				}

				// http.ErrAbortHandler is the sanctioned way to abort a response.
				if rec == http.ErrAbortHandler { //nolint:errorlint,err113
					panic(rec)
				}

				correlationID := GetCorrelationID(ctx)

				logger.Error("HTTP request panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", correlationID),
					slog.Any("panic", rec),
					slog.String("stack_trace", string(debug.Stack())),
				)

				detail := "An unexpected error occurred while processing the request"
				if err := writeProblem(w, r, http.StatusInternalServerError, detail); err != nil {
					logger.Error("Failed to encode error response",
						slog.Any("error", err),
						slog.String("correlation_id", correlationID),
					)
				}
			}(r.Context())

			next.ServeHTTP(w, r)
		})
	}
}
