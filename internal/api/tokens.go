package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
	"github.com/hardbanrecords/hardban-lab/internal/auth"
	"github.com/hardbanrecords/hardban-lab/internal/storage"
)

const tokenTypeBearer = "Bearer"

type (
	tokenRequest struct {
		ServiceKey string `json:"serviceKey"`
	}

	tokenResponse struct {
		AccessToken string    `json:"accessToken"`
		TokenType   string    `json:"tokenType"`
		ExpiresIn   int64     `json:"expiresIn"`
		ExpiresAt   time.Time `json:"expiresAt"`
	}
)

// handleIssueToken exchanges a service key for a bearer token. The key comes from
// the X-Api-Key or Authorization header (already resolved by Authenticate) or from
// the "serviceKey" field of a JSON body. Bearer tokens cannot be exchanged.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil {
		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("Token issuing is not configured"))

		return
	}

	claims, ok := s.tokenClaims(w, r)
	if !ok {
		return
	}

	token, issued, err := s.deps.Tokens.Issue(claims)
	if err != nil {
		s.logger.Error("Failed to issue token",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to issue token"))

		return
	}

	s.logger.Info("Token issued",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("user_id", issued.Subject),
		slog.String("role", issued.Role),
		slog.Time("expires_at", issued.ExpiresAt),
	)

	w.Header().Set("Cache-Control", "no-store")

	s.writeJSON(w, r, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.deps.Tokens.TTL().Seconds()),
		ExpiresAt:   issued.ExpiresAt,
	})
}

// tokenClaims resolves the service key behind the request into token claims.
func (s *Server) tokenClaims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		if user.Method != middleware.MethodServiceKey {
			s.writeAuthProblem(w, r, &auth.AuthError{
				Type:    auth.ErrInvalidServiceKey,
				Message: "A service key is required to issue tokens",
			})

			return auth.Claims{}, false
		}

		return auth.Claims{Subject: user.ID, Role: user.Role, Tier: user.Tier}, true
	}

	var req tokenRequest
	if !s.decodeJSON(w, r, &req) {
		return auth.Claims{}, false
	}

	if req.ServiceKey == "" {
		s.writeAuthProblem(w, r, &auth.AuthError{
			Type:    auth.ErrMissingCredentials,
			Message: "Missing service key",
		})

		return auth.Claims{}, false
	}

	key, err := middleware.AuthenticateServiceKey(r.Context(), s.deps.ServiceKeys, req.ServiceKey, s.now())
	if err != nil {
		s.writeAuthProblem(w, r, err)

		return auth.Claims{}, false
	}

	return claimsFor(key), true
}

func claimsFor(key *storage.ServiceKey) auth.Claims {
	return auth.Claims{Subject: key.OwnerID, Role: key.Role, Tier: key.Tier}
}

// writeAuthProblem writes an authentication failure as an RFC 7807 problem without
// echoing the credential.
func (s *Server) writeAuthProblem(w http.ResponseWriter, r *http.Request, err error) {
	status := middleware.AuthStatusCode(err)
	detail := "Authentication failed"

	var authErr *auth.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		detail = authErr.Message
	}

	s.logger.Warn("Token exchange rejected",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("reason", err.Error()),
		slog.Bool("security_audit", true),
		slog.String("event", "token_exchange_rejected"),
	)

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="hardban"`)
	}

	WriteErrorResponse(w, r, s.logger, NewProblemDetail(status, detail))
}
