package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	breakerName             = "rate-limit-redis"
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	breakerHalfOpenRequests = 1
	degradedWarnInterval    = 30 * time.Second
)

// FallbackStore sends increments to a shared primary store and degrades to a local
// secondary store while the primary is failing. Callers never see primary errors.
//
// A circuit breaker stops hammering a dead primary: after five consecutive failures
// calls go straight to the secondary for 30s before a single probe is let through.
type FallbackStore struct {
	primary   Store
	secondary Store
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
	warn      *rate.Sometimes
}

// NewFallbackStore wraps primary with secondary as its degraded-mode store.
func NewFallbackStore(primary, secondary Store, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}

	f := &FallbackStore{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
		warn:      &rate.Sometimes{First: 1, Interval: degradedWarnInterval},
	}

	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// A cancelled request says nothing about Redis health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("rate limit store circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return f
}

// Increment implements Store.
func (f *FallbackStore) Increment(ctx context.Context, key string, window time.Duration) (Counter, error) {
	res, err := f.breaker.Execute(func() (any, error) {
		return f.primary.Increment(ctx, key, window)
	})
	if err == nil {
		counter, _ := res.(Counter)

		return counter, nil
	}

	f.degraded("increment", err)

	return f.secondary.Increment(ctx, key, window)
}

// Reset clears key in both stores so an admin reset is effective whichever one is serving.
func (f *FallbackStore) Reset(ctx context.Context, key string) error {
	secondaryErr := f.secondary.Reset(ctx, key)

	_, err := f.breaker.Execute(func() (any, error) {
		return nil, f.primary.Reset(ctx, key)
	})
	if err != nil {
		f.degraded("reset", err)
	}

	return secondaryErr
}

// State exposes the breaker state for health reporting.
func (f *FallbackStore) State() gobreaker.State {
	return f.breaker.State()
}

// Close closes the primary. The secondary is owned by whoever created it.
func (f *FallbackStore) Close() error {
	return f.primary.Close()
}

func (f *FallbackStore) degraded(op string, err error) {
	storeFallbacks.WithLabelValues(op).Inc()

	f.warn.Do(func() {
		f.logger.Warn("shared rate limit store unavailable, using in-memory counters",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.String("breaker_state", f.breaker.State().String()),
		)
	})
}
