package middleware

import (
	"context"
	"time"

	"github.com/hardbanrecords/hardban-lab/internal/ratelimit"
)

// Authentication methods recorded on User.Method.
const (
	MethodToken      = "token"
	MethodServiceKey = "service_key"
)

type (
	// userContextKey is the context key for the authenticated caller.
	userContextKey struct{}

	// authFailureContextKey is the context key for a rejected credential.
	authFailureContextKey struct{}
)

// User is the authenticated caller attached to the request context by Authenticate.
type User struct {
	// ID is the token subject or the service key owner.
	ID   string
	Role string
	Tier string

	// Method is MethodToken or MethodServiceKey.
	Method string

	// KeyID is the service key used, empty for bearer tokens.
	KeyID string

	AuthTime time.Time
}

// IsAdmin reports whether the caller holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == ratelimit.RoleAdmin
}

// Subject converts the caller into the identity the rate limiter keys on.
func (u User) Subject() ratelimit.Subject {
	return ratelimit.Subject{UserID: u.ID, Role: u.Role, Tier: u.Tier}
}

// UserFromContext returns the authenticated caller, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey{}).(User)

	return user, ok
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// subjectFromContext is the anonymous Subject when no caller is attached.
func subjectFromContext(ctx context.Context) ratelimit.Subject {
	if user, ok := UserFromContext(ctx); ok {
		return user.Subject()
	}

	return ratelimit.Subject{}
}

// AuthFailure returns the error Authenticate recorded for a credential it rejected,
// or nil when the request carried no credential or a valid one.
func AuthFailure(ctx context.Context) error {
	err, _ := ctx.Value(authFailureContextKey{}).(error)

	return err
}

func withAuthFailure(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authFailureContextKey{}, err)
}
