package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"

	"github.com/hardbanrecords/hardban-lab/internal/config"
	"github.com/hardbanrecords/hardban-lab/internal/ratelimit"
)

// CodeCORSViolation is the "error" member of 403 bodies written by the CORS gate.
const CodeCORSViolation = "CORS_POLICY_VIOLATION"

const (
	productionOriginSuffix = ".hardbanrecords.com"
	localhostOriginPrefix  = "http://localhost:"
	loopbackOriginPrefix   = "http://127.0.0.1:"
)

// DefaultOrigins are allowed in every environment.
var DefaultOrigins = []string{ //nolint:gochecknoglobals
	"https://hardbanrecords.com",
	"https://www.hardbanrecords.com",
	"https://app.hardbanrecords.com",
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORSError is returned by CORSPolicy.Check for a rejected origin.
type CORSError struct {
	Code       string
	StatusCode int
	Message    string
	Origin     string
}

func (e *CORSError) Error() string {
	return e.Message
}

// CORSPolicy decides whether a browser origin may call the API.
type CORSPolicy struct {
	env       config.Environment
	allowList []string
	allowed   map[string]struct{}
}

// NewCORSPolicy returns a policy allowing DefaultOrigins plus extra.
func NewCORSPolicy(env config.Environment, extra []string) *CORSPolicy {
	p := &CORSPolicy{
		env:     env,
		allowed: make(map[string]struct{}, len(DefaultOrigins)+len(extra)),
	}

	for _, origin := range slices.Concat(DefaultOrigins, extra) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}

		if _, dup := p.allowed[origin]; dup {
			continue
		}

		p.allowed[origin] = struct{}{}
		p.allowList = append(p.allowList, origin)
	}

	return p
}

// AllowList returns the exact-match origins in configuration order.
func (p *CORSPolicy) AllowList() []string {
	return slices.Clone(p.allowList)
}

// Environment returns the environment the policy was built for.
func (p *CORSPolicy) Environment() config.Environment {
	return p.env
}

// Check returns nil when origin may proceed and a *CORSError otherwise.
//
// An empty origin is a non-browser client and always passes. Exact allow-list
// entries pass in every environment; development additionally admits any local
// port and production any hardbanrecords.com subdomain.
func (p *CORSPolicy) Check(origin string) error {
	if origin == "" {
		return nil
	}

	if _, ok := p.allowed[origin]; ok {
		return nil
	}

	if p.env.IsDevelopment() &&
		(strings.HasPrefix(origin, localhostOriginPrefix) || strings.HasPrefix(origin, loopbackOriginPrefix)) {
		return nil
	}

	if p.env.IsProduction() && strings.HasSuffix(origin, productionOriginSuffix) {
		return nil
	}

	return &CORSError{
		Code:       CodeCORSViolation,
		StatusCode: http.StatusForbidden,
		Message:    fmt.Sprintf("CORS policy violation: Origin %s is not allowed", origin),
		Origin:     origin,
	}
}

type corsErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// CORS creates the CORS policy gate. Rejected origins get a terminal 403 and a
// security audit record; allowed cross-origin requests get Access-Control-*
// headers and preflight answers from rs/cors. The gate is not installed at all
// in the test environment.
//
// Known webhook partners posting to /webhooks/ are let through regardless of the
// allow-list; SecurityHeaders echoes their origin. Upload paths answer preflights
// with the upload header list and max-age.
func CORS(cfg *CORSConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	policy := NewCORSPolicy(cfg.Environment, cfg.Origins)

	options := cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return policy.Check(origin) == nil
		},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Authorization", "Content-Type", "X-Api-Key",
			correlationHeader, "X-File-Type", "X-File-Name", "X-Store-Channel",
		},
		ExposedHeaders: []string{
			correlationHeader, headerRateLimitLimit, headerRateLimitRemaining,
			headerRateLimitReset, headerRetryAfter,
		},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           int(cfg.MaxAge.Seconds()),
	}

	uploadOptions := options
	uploadOptions.AllowedHeaders = uploadAllowedHeaderList
	uploadOptions.MaxAge = uploadMaxAgeSeconds

	headers := cors.New(options)
	uploadHeaders := cors.New(uploadOptions)

	return func(next http.Handler) http.Handler {
		if cfg.Environment.IsTest() {
			return next
		}

		withHeaders := headers.Handler(next)
		withUploadHeaders := uploadHeaders.Handler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if strings.HasPrefix(r.URL.Path, webhookPathPrefix) && isWebhookPartner(origin) {
				next.ServeHTTP(w, r)

				return
			}

			err := policy.Check(origin)
			if err == nil {
				if strings.HasPrefix(r.URL.Path, uploadPathPrefix) {
					withUploadHeaders.ServeHTTP(w, r)

					return
				}

				withHeaders.ServeHTTP(w, r)

				return
			}

			var corsErr *CORSError
			if !errors.As(err, &corsErr) {
				corsErr = &CORSError{Code: CodeCORSViolation, StatusCode: http.StatusForbidden, Message: err.Error()}
			}

			corsDenials.Inc()

			logger.Warn("CORS policy violation",
				slog.Bool("security_audit", true),
				slog.String("event", "cors_violation"),
				slog.String("origin", origin),
				slog.Any("allowed_origins", policy.AllowList()),
				slog.String("environment", policy.Environment().String()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("ip", ratelimit.ClientIP(r)),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
			)

			body := corsErrorBody{Error: corsErr.Code, Message: corsErr.Message, StatusCode: corsErr.StatusCode}
			if err := writeJSON(w, corsErr.StatusCode, body); err != nil {
				logger.Error("Failed to encode CORS error response",
					slog.String("correlation_id", GetCorrelationID(r.Context())),
					slog.Any("error", err),
				)
			}
		})
	}
}
