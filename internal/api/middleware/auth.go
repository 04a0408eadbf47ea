package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hardbanrecords/hardban-lab/internal/auth"
	"github.com/hardbanrecords/hardban-lab/internal/storage"
)

// TokenVerifier verifies bearer tokens. Satisfied by *auth.TokenService.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// credentialKind tells which verifier a credential goes to.
type credentialKind int

const (
	credentialToken credentialKind = iota
	credentialServiceKey
)

// dummyHash is a valid bcrypt hash compared against on lookup misses, so unknown
// keys cost the same as known ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("hardban-dummy-service-key"), bcrypt.MinCost) //nolint:gochecknoglobals

// extractCredential reads the caller's credential from request headers.
// X-Api-Key takes precedence and always carries a service key. An Authorization
// Bearer value is a service key when it has the service key prefix and a token
// otherwise.
//
// Returns (credential, kind, true) when found, ("", 0, false) otherwise.
func extractCredential(r *http.Request) (string, credentialKind, bool) {
	if apiKey := r.Header.Get("X-Api-Key"); apiKey != "" {
		key, ok := cleanCredential(apiKey)

		return key, credentialServiceKey, ok
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", credentialToken, false
	}

	credential, ok := cleanCredential(strings.TrimPrefix(authHeader, "Bearer "))
	if !ok {
		return "", credentialToken, false
	}

	if strings.HasPrefix(credential, storage.ServiceKeyPrefix) {
		return credential, credentialServiceKey, true
	}

	return credential, credentialToken, true
}

// cleanCredential rejects values containing CR or LF (header injection) and
// trims whitespace. Empty values are rejected.
func cleanCredential(value string) (string, bool) {
	if strings.ContainsAny(value, "\r\n") {
		return "", false
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	return value, true
}

func performDummyBcryptComparison() {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte("hardban-dummy-service-key-miss"))
}

// AuthenticateServiceKey resolves a plaintext service key to its stored record.
//
// Malformed and unknown keys both yield ErrInvalidServiceKey after a dummy bcrypt
// comparison. Revoked keys yield ErrServiceKeyInactive and expired keys
// ErrServiceKeyExpired. Every failure is an *auth.AuthError.
func AuthenticateServiceKey(
	ctx context.Context,
	store storage.ServiceKeyStore,
	rawKey string,
	now time.Time,
) (*storage.ServiceKey, error) {
	invalid := &auth.AuthError{Type: auth.ErrInvalidServiceKey, Message: "Invalid or missing service key"}

	if store == nil {
		performDummyBcryptComparison()

		return nil, invalid
	}

	parsedKey, err := storage.ParseServiceKey(rawKey)
	if err != nil {
		performDummyBcryptComparison()

		return nil, invalid
	}

	found, exists := store.FindByKey(ctx, parsedKey)
	if !exists {
		performDummyBcryptComparison()

		return nil, invalid
	}

	if !found.Active {
		return nil, &auth.AuthError{Type: auth.ErrServiceKeyInactive, Message: "Service key has been revoked"}
	}

	if found.IsExpired(now) {
		return nil, &auth.AuthError{Type: auth.ErrServiceKeyExpired, Message: "Service key has expired"}
	}

	return found, nil
}

// Authenticate creates a middleware that resolves the caller from a bearer token or
// a service key and attaches it as a User. Requests without credentials continue
// anonymously; use RequireAuth or RequireRole on routes that need a caller.
//
// Bad credentials are not rejected here. The failure is recorded on the context and
// the request continues anonymously, so the route's rate limiter counts it before
// RequireAuth, RequireRole or RejectInvalidCredentials answers with 401 or 403.
func Authenticate(tokens TokenVerifier, keys storage.ServiceKeyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authStart := time.Now()

			credential, kind, found := extractCredential(r)
			if !found {
				next.ServeHTTP(w, r)

				return
			}

			var user User

			switch kind {
			case credentialServiceKey:
				key, err := AuthenticateServiceKey(r.Context(), keys, credential, authStart)
				if err != nil {
					logger.Debug("Credential rejected",
						slog.String("reason", err.Error()),
						slog.String("correlation_id", GetCorrelationID(r.Context())),
						slog.String("endpoint", r.URL.Path),
					)

					next.ServeHTTP(w, r.WithContext(withAuthFailure(r.Context(), err)))

					return
				}

				user = User{
					ID:     key.OwnerID,
					Role:   key.Role,
					Tier:   key.Tier,
					Method: MethodServiceKey,
					KeyID:  key.ID,
				}
			default:
				claims, err := tokens.Verify(credential)
				if err != nil {
					logger.Debug("Credential rejected",
						slog.String("reason", err.Error()),
						slog.String("correlation_id", GetCorrelationID(r.Context())),
						slog.String("endpoint", r.URL.Path),
					)

					next.ServeHTTP(w, r.WithContext(withAuthFailure(r.Context(), err)))

					return
				}

				user = User{ID: claims.Subject, Role: claims.Role, Tier: claims.Tier, Method: MethodToken}
			}

			user.AuthTime = time.Now()

			logger.Debug("Caller authenticated",
				slog.String("user_id", user.ID),
				slog.String("method", user.Method),
				slog.String("key_id", user.KeyID),
				slog.Duration("auth_latency", time.Since(authStart)),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
				slog.String("endpoint", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RejectInvalidCredentials answers requests whose credential Authenticate rejected.
// Anonymous requests pass; use it on public routes that still refuse bad credentials.
func RejectInvalidCredentials(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := AuthFailure(r.Context()); err != nil {
				writeAuthError(w, r, logger, err)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests with a rejected credential, and anonymous requests,
// with 401.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := AuthFailure(r.Context()); err != nil {
				writeAuthError(w, r, logger, err)

				return
			}

			if _, ok := UserFromContext(r.Context()); !ok {
				writeAuthError(w, r, logger, &auth.AuthError{
					Type:    auth.ErrMissingCredentials,
					Message: "Missing bearer token or service key",
				})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects rejected credentials and anonymous requests with 401 and
// callers without role with 403.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := AuthFailure(r.Context()); err != nil {
				writeAuthError(w, r, logger, err)

				return
			}

			user, ok := UserFromContext(r.Context())
			if !ok {
				writeAuthError(w, r, logger, &auth.AuthError{
					Type:    auth.ErrMissingCredentials,
					Message: "Missing bearer token or service key",
				})

				return
			}

			if user.Role != role {
				writeAuthError(w, r, logger, &auth.AuthError{
					Type:    auth.ErrForbidden,
					Message: "requires role " + role,
				})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthStatusCode maps an authentication error to its HTTP status.
func AuthStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrServiceKeyInactive), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// writeAuthError writes an RFC 7807 response for an authentication failure and
// logs it without the credential.
func writeAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	correlationID := GetCorrelationID(r.Context())
	statusCode := AuthStatusCode(err)

	reason := "unknown"

	var authErr *auth.AuthError
	if errors.As(err, &authErr) && authErr.Type != nil {
		reason = authErr.Type.Error()
	}

	authFailures.WithLabelValues(reason).Inc()

	logger.Warn("Authentication failed",
		slog.String("reason", err.Error()),
		slog.String("correlation_id", correlationID),
		slog.String("endpoint", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.UserAgent()),
	)

	if statusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="hardban-lab"`)
	}

	if err := writeProblem(w, r, statusCode, err.Error()); err != nil {
		logger.Error("Failed to encode authentication error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.Any("encode_error", err),
		)
	}
}
