package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

const (
	keyScope           = "rl"
	anonymousUser      = "anonymous"
	maxUserAgentLength = 50
)

type (
	// Subject is the caller identity the limiter keys and skips on. The zero value is
	// an anonymous caller.
	Subject struct {
		UserID string
		Role   string
		Tier   string
	}

	// KeyFunc derives the counter key for a request.
	KeyFunc func(r *http.Request, s Subject) string

	// SkipFunc reports whether a request bypasses limiting entirely.
	SkipFunc func(r *http.Request, s Subject) bool
)

// DefaultKey builds rl:<userId|anonymous>:<ip>:<ua[:50]>[:suffix].
func DefaultKey(r *http.Request, s Subject, suffix string) string {
	user := s.UserID
	if user == "" {
		user = anonymousUser
	}

	return joinKey(keyScope, user, ClientIP(r), truncateUserAgent(r.UserAgent()), suffix)
}

// truncateUserAgent keeps the first maxUserAgentLength runes of ua. Invalid UTF-8 is
// dropped so keys stay valid strings.
func truncateUserAgent(ua string) string {
	ua = strings.ToValidUTF8(ua, "")

	count := 0
	for i := range ua {
		if count == maxUserAgentLength {
			return ua[:i]
		}

		count++
	}

	return ua
}

// DefaultKeyFunc returns a KeyFunc producing DefaultKey with suffix.
func DefaultKeyFunc(suffix string) KeyFunc {
	return func(r *http.Request, s Subject) string {
		return DefaultKey(r, s, suffix)
	}
}

// IPKeyFunc keys on the client address alone. Used where the caller is not yet
// authenticated and rotating user agents must not reset the count.
func IPKeyFunc(suffix string) KeyFunc {
	return func(r *http.Request, _ Subject) string {
		return joinKey(keyScope, ClientIP(r), suffix)
	}
}

// UserKeyFunc keys on the user id, falling back to the client address.
func UserKeyFunc(suffix string) KeyFunc {
	return func(r *http.Request, s Subject) string {
		if s.UserID == "" {
			return joinKey(keyScope, anonymousUser, ClientIP(r), suffix)
		}

		return joinKey(keyScope, s.UserID, suffix)
	}
}

// HeaderKeyFunc folds a request header into the default key, so each value of the
// header (file type, store channel) gets its own budget.
func HeaderKeyFunc(header, suffix string) KeyFunc {
	return func(r *http.Request, s Subject) string {
		value := strings.ToLower(strings.TrimSpace(r.Header.Get(header)))
		if value == "" {
			value = "unknown"
		}

		return DefaultKey(r, s, joinKey(suffix, value))
	}
}

// ClientIP returns the originating client address, honouring X-Forwarded-For and
// X-Real-IP as set by the load balancer in front of the API.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func joinKey(parts ...string) string {
	var b strings.Builder

	for _, part := range parts {
		if part == "" {
			continue
		}

		if b.Len() > 0 {
			b.WriteByte(':')
		}

		b.WriteString(part)
	}

	return b.String()
}
