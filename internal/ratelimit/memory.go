package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultCleanupInterval = time.Minute
	defaultMaxKeys         = 100_000
	keyWarnThreshold       = 0.8
)

type (
	// MemoryStoreConfig tunes the in-process counter store.
	MemoryStoreConfig struct {
		// CleanupInterval is how often expired windows are swept. Defaults to one minute.
		CleanupInterval time.Duration
		// MaxKeys is a soft cap used only to warn about key proliferation.
		MaxKeys int
		Logger  *slog.Logger
		// Clock overrides time.Now, for tests.
		Clock func() time.Time
	}

	// MemoryStore keeps counters in process memory.
	//
	// Counts are not shared between instances: with N replicas behind a load balancer a
	// client effectively gets N times the configured limit. Use it for single-node
	// deployments, webhook limiting and as the degraded-mode store behind FallbackStore.
	MemoryStore struct {
		windows       map[string]*memoryWindow
		mu            sync.Mutex
		cleanupTicker *time.Ticker
		done          chan struct{}
		closeOnce     sync.Once
		closed        bool

		maxKeys int
		warned  bool
		logger  *slog.Logger
		now     func() time.Time
	}

	memoryWindow struct {
		count   int64
		resetAt time.Time
	}
)

// NewMemoryStore creates a MemoryStore and starts its janitor goroutine.
// Close must be called to stop it.
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}

	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &MemoryStore{
		windows: make(map[string]*memoryWindow),
		done:    make(chan struct{}),
		maxKeys: cfg.MaxKeys,
		logger:  cfg.Logger,
		now:     cfg.Clock,
	}

	s.startCleanup(cfg.CleanupInterval)

	return s
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (Counter, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Counter{}, ErrStoreClosed
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w

		if !ok {
			s.checkKeyCount()
		}
	}

	w.count++

	return Counter{Count: w.count, ResetAt: w.resetAt}, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)

	return nil
}

// Len returns the number of tracked windows, expired ones included until the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.windows)
}

// Close stops the janitor. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.cleanupTicker.Stop()
		close(s.done)

		s.mu.Lock()
		s.closed = true
		s.windows = make(map[string]*memoryWindow)
		s.mu.Unlock()
	})

	return nil
}

// checkKeyCount warns once when the store crosses 80% of MaxKeys. Caller holds mu.
func (s *MemoryStore) checkKeyCount() {
	count := len(s.windows)
	memoryKeys.Set(float64(count))

	threshold := int(float64(s.maxKeys) * keyWarnThreshold)
	if count < threshold {
		s.warned = false

		return
	}

	if s.warned {
		return
	}

	s.warned = true
	s.logger.Warn("in-memory rate limit store approaching key limit",
		slog.Int("current_keys", count),
		slog.Int("max_keys", s.maxKeys),
		slog.String("recommendation", "configure REDIS_URL for shared rate limiting or investigate key proliferation"),
	)
}

func (s *MemoryStore) startCleanup(interval time.Duration) {
	s.cleanupTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.sweep()
			case <-s.done:
				return
			}
		}
	}()
}

// sweep drops windows whose reset time has passed.
func (s *MemoryStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}

	memoryKeys.Set(float64(len(s.windows)))
}
