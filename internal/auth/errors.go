// Package auth issues and verifies bearer tokens and defines the authentication
// error taxonomy shared by the HTTP layer.
package auth

import (
	"errors"
	"fmt"
)

// AuthError represents an authentication error with a specific type.
type AuthError struct { //nolint:revive
	Type    error
	Message string
}

// Authentication error types.
var (
	// ErrMissingCredentials is returned when a request carries neither a bearer token
	// nor a service key.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidToken is returned for malformed, forged or expired bearer tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidServiceKey is returned for unknown or malformed service keys.
	// The generic message prevents key enumeration.
	ErrInvalidServiceKey = errors.New("invalid service key")

	// ErrServiceKeyExpired is returned when the service key has expired.
	ErrServiceKeyExpired = errors.New("service key expired")

	// ErrServiceKeyInactive is returned when the service key was revoked.
	ErrServiceKeyInactive = errors.New("service key inactive")

	// ErrForbidden is returned when an authenticated caller lacks the required role.
	ErrForbidden = errors.New("insufficient role")

	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("JWT_SECRET is not set")

	// ErrWeakSecret is returned when the signing secret is too short for HS256.
	ErrWeakSecret = errors.New("JWT_SECRET is too short")
)

// Error implements the error interface for AuthError.
func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %s: %s", e.Type.Error(), e.Message)
	}

	return "authentication failed: " + e.Type.Error()
}

// Unwrap returns the wrapped error type, enabling errors.Is and errors.As.
func (e *AuthError) Unwrap() error {
	return e.Type
}
