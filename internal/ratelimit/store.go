// Package ratelimit implements fixed-window request limiting for the Hardban API.
//
// Counters live in a Store. Two implementations ship with the package: a process-local
// MemoryStore and a RedisStore shared by every instance. FallbackStore glues them together
// so a Redis outage degrades to per-instance limiting instead of failing requests.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("rate limit store closed")

// Counter is the state of one fixed window after an increment.
type Counter struct {
	Count   int64
	ResetAt time.Time
}

// Store keeps per-key hit counters for fixed windows.
//
// Increment atomically adds one hit to key. The first hit of a window creates the
// record and fixes its reset time to now+window; later hits in the same window only
// bump the count. Records disappear once their window has elapsed.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (Counter, error)
	Reset(ctx context.Context, key string) error
	Close() error
}
