package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"time"
)

// Result describes one limiting decision.
type Result struct {
	Allowed bool
	// Skipped is true when the policy's skip rule exempted the request.
	Skipped   bool
	Key       string
	Limit     int64
	Remaining int64
	ResetAt   time.Time
	// RetryAfter is whole seconds until the window resets, set on rejection.
	RetryAfter int64
	Code       string
	Message    string
	Class      string
}

// Limiter applies a Policy against a Store.
type Limiter struct {
	policy Policy
	store  Store
	now    func() time.Time
}

// NewLimiter creates a limiter. Policies without a KeyFunc use DefaultKeyFunc.
func NewLimiter(policy Policy, store Store) *Limiter {
	if policy.KeyFunc == nil {
		policy.KeyFunc = DefaultKeyFunc(policy.Suffix)
	}

	return &Limiter{policy: policy, store: store, now: time.Now}
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Allow counts the request and decides whether it may proceed.
//
// A request is rejected once the post-increment count exceeds Max within the open
// window. If the store fails the request is allowed and the error returned so the
// caller can log it.
func (l *Limiter) Allow(r *http.Request, s Subject) (Result, error) {
	p := l.policy
	now := l.now()

	res := Result{
		Allowed:   true,
		Limit:     p.Max,
		Remaining: p.Max,
		ResetAt:   now.Add(p.Window),
		Code:      p.Code,
		Message:   p.Message,
		Class:     p.Name,
	}

	if p.Skip != nil && p.Skip(r, s) {
		res.Skipped = true
		decisionsTotal.WithLabelValues(p.Name, "skipped").Inc()

		return res, nil
	}

	res.Key = p.KeyFunc(r, s)

	counter, err := l.store.Increment(r.Context(), res.Key, p.Window)
	if err != nil {
		decisionsTotal.WithLabelValues(p.Name, "error").Inc()

		return res, fmt.Errorf("rate limit %s: %w", p.Name, err)
	}

	res.ResetAt = counter.ResetAt
	res.Remaining = max(p.Max-counter.Count, 0)
	res.Allowed = counter.Count <= p.Max

	if !res.Allowed {
		res.RetryAfter = retryAfterSeconds(counter.ResetAt, now)
		decisionsTotal.WithLabelValues(p.Name, "rejected").Inc()

		return res, nil
	}

	decisionsTotal.WithLabelValues(p.Name, "allowed").Inc()

	return res, nil
}

// retryAfterSeconds is ceil((resetAt - now) / 1s), never below one second.
func retryAfterSeconds(resetAt, now time.Time) int64 {
	seconds := int64(math.Ceil(resetAt.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}

	return seconds
}
