package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/ratelimit"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
	headerRetryAfter         = "Retry-After"
)

// Limiter decides whether a request may proceed. Satisfied by *ratelimit.Limiter
// and *ratelimit.TieredLimiter.
type Limiter interface {
	Allow(r *http.Request, s ratelimit.Subject) (ratelimit.Result, error)
}

// rateLimitBody is the 429 response body.
type rateLimitBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retryAfter"`
	Limit      int64  `json:"limit"`
	Remaining  int64  `json:"remaining"`
	ResetTime  string `json:"resetTime"`
}

// RateLimit returns a middleware that enforces limiter on incoming requests.
//
// It must run after Authenticate so that the caller's id, role and tier reach the
// limiter. Every counted request carries X-RateLimit-Limit, X-RateLimit-Remaining
// and X-RateLimit-Reset (Unix seconds). Rejected requests get 429 with Retry-After
// and a JSON body naming the limit code. Store failures are logged and the request
// proceeds.
func RateLimit(limiter Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r, subjectFromContext(r.Context()))
			if err != nil {
				logger.Warn("rate limit check failed, allowing request",
					slog.String("class", res.Class),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", GetCorrelationID(r.Context())),
					slog.String("error", err.Error()),
				)

				next.ServeHTTP(w, r)

				return
			}

			if res.Skipped {
				next.ServeHTTP(w, r)

				return
			}

			h := w.Header()
			h.Set(headerRateLimitLimit, strconv.FormatInt(res.Limit, 10))
			h.Set(headerRateLimitRemaining, strconv.FormatInt(res.Remaining, 10))
			h.Set(headerRateLimitReset, strconv.FormatInt(res.ResetAt.Unix(), 10))

			if res.Allowed {
				next.ServeHTTP(w, r)

				return
			}

			h.Set(headerRetryAfter, strconv.FormatInt(res.RetryAfter, 10))

			logger.Warn("Rate limit exceeded",
				slog.Bool("security_audit", true),
				slog.String("event", "rate_limit_exceeded"),
				slog.String("class", res.Class),
				slog.String("code", res.Code),
				slog.String("ip", ratelimit.ClientIP(r)),
				slog.String("path", r.URL.Path),
				slog.String("method", r.Method),
				slog.Int64("limit", res.Limit),
				slog.Int64("remaining", res.Remaining),
				slog.Time("reset", res.ResetAt),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
			)

			body := rateLimitBody{
				Error:      res.Code,
				Message:    res.Message,
				RetryAfter: res.RetryAfter,
				Limit:      res.Limit,
				Remaining:  res.Remaining,
				ResetTime:  res.ResetAt.UTC().Format(time.RFC3339),
			}

			if err := writeJSON(w, http.StatusTooManyRequests, body); err != nil {
				logger.Error("failed to encode rate limit response",
					slog.String("correlation_id", GetCorrelationID(r.Context())),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
		})
	}
}
