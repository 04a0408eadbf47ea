package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
	"github.com/hardbanrecords/hardban-lab/internal/ratelimit"
)

const (
	healthCheckTimeout     = 2 * time.Second
	contentTypeProblemJSON = "application/problem+json"
	serviceName            = "hardban-lab"

	defaultPageSize = 50
	maxPageSize     = 200
)

// Version is the build version reported by /ping and /health. Set with
// -ldflags "-X github.com/hardbanrecords/hardban-lab/internal/api.Version=...".
var Version = "dev" //nolint:gochecknoglobals

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Environment string `json:"environment"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// listResponse wraps a page of resources.
	listResponse struct {
		Data   any `json:"data"`
		Count  int `json:"count"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}

	// page is the parsed limit and offset of a list request.
	page struct {
		Limit  int
		Offset int
	}
)

// setupRoutes registers every route. Authentication runs globally and only records
// the caller or the rejected credential. Each route then runs its rate limit class
// before its auth gate, so rejected and anonymous requests are counted too.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Public health endpoints, never rate limited.
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/", s.handleNotFound)

	s.route(mux, "POST /api/v1/auth/token", s.handleIssueToken, s.limitBy(ratelimit.ClassAuth), s.rejectInvalidCredentials())

	if s.deps.Rights != nil {
		user := []middleware.Option{s.limitBy(ratelimit.ClassAPI), s.requireAuth()}
		tiered := []middleware.Option{s.limitByTier(), s.requireAuth()}

		s.route(mux, "GET /api/v1/rights", s.handleListRights, user...)
		s.route(mux, "POST /api/v1/rights", s.handleCreateRight, user...)
		s.route(mux, "POST /api/v1/rights/conflicts", s.handleRightsConflicts, tiered...)
		s.route(mux, "GET /api/v1/rights/coverage", s.handleRightsCoverage, tiered...)
		s.route(mux, "GET /api/v1/rights/{id}", s.handleGetRight, user...)
		s.route(mux, "PATCH /api/v1/rights/{id}", s.handleUpdateRight, user...)
		s.route(mux, "DELETE /api/v1/rights/{id}", s.handleDeleteRight, user...)
	} else {
		s.logger.Warn("Rights store not configured - rights routes disabled")
	}

	if s.deps.Chapters != nil {
		user := []middleware.Option{s.limitBy(ratelimit.ClassAPI), s.requireAuth()}

		s.route(mux, "GET /api/v1/chapters", s.handleListChapters, user...)
		s.route(mux, "POST /api/v1/chapters", s.handleCreateChapter, user...)
		s.route(mux, "GET /api/v1/chapters/{id}", s.handleGetChapter, user...)
		s.route(mux, "PATCH /api/v1/chapters/{id}", s.handleUpdateChapter, user...)
		s.route(mux, "DELETE /api/v1/chapters/{id}", s.handleDeleteChapter, user...)
	} else {
		s.logger.Warn("Chapter store not configured - chapter routes disabled")
	}

	s.route(mux, "POST /api/v1/uploads", s.handleUpload, s.limitBy(ratelimit.ClassUpload), s.requireAuth())
	s.route(mux, "GET /uploads/{name}", s.handleGetUpload, s.limitBy(ratelimit.ClassAPI), s.requireAuth())

	s.route(mux, "POST /webhooks/{channel}", s.handleWebhook, s.limitBy(ratelimit.ClassWebhook), s.rejectInvalidCredentials())

	admin := []middleware.Option{s.limitBy(ratelimit.ClassAdmin), s.requireAdmin()}

	s.route(mux, "GET /api/v1/admin/service-keys", s.handleListServiceKeys, admin...)
	s.route(mux, "POST /api/v1/admin/service-keys", s.handleCreateServiceKey, admin...)
	s.route(mux, "DELETE /api/v1/admin/service-keys/{id}", s.handleDeleteServiceKey, admin...)
	s.route(mux, "DELETE /api/v1/admin/rate-limits", s.handleResetRateLimit, admin...)
}

// route registers handler under pattern wrapped in opts, first option outermost.
func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc, opts ...middleware.Option) {
	mux.Handle(pattern, middleware.Apply(handler, opts...))
}

func (s *Server) requireAuth() middleware.Option {
	return middleware.RequireAuth(s.logger)
}

func (s *Server) rejectInvalidCredentials() middleware.Option {
	return middleware.RejectInvalidCredentials(s.logger)
}

func (s *Server) requireAdmin() middleware.Option {
	return middleware.RequireRole(ratelimit.RoleAdmin, s.logger)
}

// limitBy returns the rate limit of a route class, or a pass-through without a registry.
func (s *Server) limitBy(class ratelimit.Class) middleware.Option {
	if s.deps.Limits == nil {
		return passThrough
	}

	return middleware.WithRateLimit(s.deps.Limits.Limiter(class), s.logger)
}

func (s *Server) limitByTier() middleware.Option {
	if s.deps.Limits == nil {
		return passThrough
	}

	return middleware.WithRateLimit(s.deps.Limits.Tiered(), s.logger)
}

func passThrough(next http.Handler) http.Handler {
	return next
}

// handlePing responds to ping requests for basic server validation.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Hardban-Version", Version)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("Failed to write ping response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

// handleReady responds to readiness probes.
//
// Response codes:
//   - 200 OK: the database and the shared rate limit store are reachable
//   - 503 Service Unavailable: either backend is unhealthy
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.checkBackends(ctx); err != nil {
		s.logger.Error("Readiness check failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		s.writeText(w, r, http.StatusServiceUnavailable, "unavailable")

		return
	}

	s.writeText(w, r, http.StatusOK, "ready")
}

func (s *Server) checkBackends(ctx context.Context) error {
	var errs []error

	if s.deps.Health != nil {
		if err := s.deps.Health.HealthCheck(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if s.deps.Limits != nil {
		if err := s.deps.Limits.Healthy(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// handleHealth returns detailed health status information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime string

	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	w.Header().Set("X-Hardban-Version", Version)

	s.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status:      "healthy",
		ServiceName: serviceName,
		Version:     Version,
		Environment: s.deps.CORS.Environment.String(),
		Uptime:      uptime,
	})
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}

// writeJSON marshals body before writing headers so that an encoding failure can
// still become a 500.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) writeText(w http.ResponseWriter, r *http.Request, status int, text string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)

	if _, err := w.Write([]byte(text)); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

// decodeJSON reads a JSON body of at most MaxRequestSize bytes into dst. On failure
// it writes the problem response and returns false.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		WriteErrorResponse(w, r, s.logger, UnsupportedMediaType("Content-Type must be application/json"))

		return false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize+1))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("Failed to read request body"))

		return false
	}

	if int64(len(body)) > s.config.MaxRequestSize {
		WriteErrorResponse(w, r, s.logger, PayloadTooLarge(
			"Request body exceeds "+strconv.FormatInt(s.config.MaxRequestSize, 10)+" bytes"))

		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("Invalid JSON: "+err.Error()))

		return false
	}

	return true
}

// parsePage reads limit and offset. Limit defaults to 50 and is capped at 200.
func parsePage(r *http.Request) (page, error) {
	p := page{Limit: defaultPageSize}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page{}, errors.New("limit must be a positive integer")
		}

		p.Limit = min(n, maxPageSize)
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page{}, errors.New("offset must be a non-negative integer")
		}

		p.Offset = n
	}

	return p, nil
}

// hasJSONContentType checks if Content-Type header starts with "application/json".
// This allows charset parameters (e.g., "application/json; charset=utf-8").
func hasJSONContentType(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(contentType), "application/json")
}

// callerID returns the authenticated caller's id, empty for anonymous requests.
func callerID(r *http.Request) string {
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		return user.ID
	}

	return ""
}
