package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
	"github.com/hardbanrecords/hardban-lab/internal/ratelimit"
	"github.com/hardbanrecords/hardban-lab/internal/storage"
)

const defaultKeyRole = "user"

type (
	createServiceKeyRequest struct {
		OwnerID   string     `json:"ownerId"`
		Name      string     `json:"name"`
		Role      string     `json:"role"`
		Tier      string     `json:"tier"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}

	// createServiceKeyResponse is the only response that ever carries the plaintext key.
	createServiceKeyResponse struct {
		Key        string              `json:"key"`
		ServiceKey *storage.ServiceKey `json:"serviceKey"`
	}
)

func (s *Server) handleCreateServiceKey(w http.ResponseWriter, r *http.Request) {
	if s.deps.ServiceKeys == nil {
		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("Service key store is not configured"))

		return
	}

	var req createServiceKeyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	now := s.now().UTC()

	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		WriteErrorResponse(w, r, s.logger, BadRequest("expiresAt must be in the future"))

		return
	}

	ownerID := strings.TrimSpace(req.OwnerID)

	plaintext, err := storage.GenerateServiceKey(ownerID)
	if err != nil {
		s.storeFailure(w, r, err, "service key")

		return
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = defaultKeyRole
	}

	key := &storage.ServiceKey{
		ID:        uuid.NewString(),
		Key:       plaintext,
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(req.Name),
		Role:      role,
		Tier:      string(ratelimit.ParseTier(req.Tier)),
		CreatedAt: now,
		ExpiresAt: req.ExpiresAt,
		Active:    true,
	}

	if err := s.deps.ServiceKeys.Add(r.Context(), key); err != nil {
		s.storeFailure(w, r, err, "service key")

		return
	}

	s.logger.Info("Service key created",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("key_id", key.ID),
		slog.String("owner_id", key.OwnerID),
		slog.String("role", key.Role),
		slog.String("created_by", callerID(r)),
		slog.Bool("security_audit", true),
		slog.String("event", "service_key_created"),
	)

	masked := *key
	masked.Key = storage.MaskKey(plaintext)

	s.writeJSON(w, r, http.StatusCreated, createServiceKeyResponse{Key: plaintext, ServiceKey: &masked})
}

func (s *Server) handleListServiceKeys(w http.ResponseWriter, r *http.Request) {
	if s.deps.ServiceKeys == nil {
		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("Service key store is not configured"))

		return
	}

	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("ownerId query parameter is required"))

		return
	}

	keys, err := s.deps.ServiceKeys.ListByOwner(r.Context(), ownerID)
	if err != nil {
		s.storeFailure(w, r, err, "service key")

		return
	}

	s.writeJSON(w, r, http.StatusOK, listResponse{Data: keys, Count: len(keys), Limit: len(keys)})
}

// handleDeleteServiceKey revokes a key. Revoked keys stay stored for the audit trail.
func (s *Server) handleDeleteServiceKey(w http.ResponseWriter, r *http.Request) {
	if s.deps.ServiceKeys == nil {
		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("Service key store is not configured"))

		return
	}

	id := r.PathValue("id")

	if err := s.deps.ServiceKeys.Delete(r.Context(), id); err != nil {
		s.storeFailure(w, r, err, "service key")

		return
	}

	s.logger.Info("Service key revoked",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("key_id", id),
		slog.String("revoked_by", callerID(r)),
		slog.Bool("security_audit", true),
		slog.String("event", "service_key_revoked"),
	)

	w.WriteHeader(http.StatusNoContent)
}

// handleResetRateLimit clears one rate limit counter by its full key, e.g.
// "rl:user-42:203.0.113.7:curl/8.4:api".
func (s *Server) handleResetRateLimit(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("key query parameter is required"))

		return
	}

	if s.deps.Limits == nil {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	if err := s.deps.Limits.Reset(r.Context(), key); err != nil {
		s.logger.Error("Failed to reset rate limit",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to reset rate limit"))

		return
	}

	s.logger.Info("Rate limit reset",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("key", key),
		slog.String("reset_by", callerID(r)),
		slog.Bool("security_audit", true),
		slog.String("event", "rate_limit_reset"),
	)

	w.WriteHeader(http.StatusNoContent)
}
