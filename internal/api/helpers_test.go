package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
	"github.com/hardbanrecords/hardban-lab/internal/auth"
	"github.com/hardbanrecords/hardban-lab/internal/chapters"
	"github.com/hardbanrecords/hardban-lab/internal/config"
	"github.com/hardbanrecords/hardban-lab/internal/events"
	"github.com/hardbanrecords/hardban-lab/internal/ratelimit"
	"github.com/hardbanrecords/hardban-lab/internal/rights"
	"github.com/hardbanrecords/hardban-lab/internal/storage"
)

const testSecret = "hardban-test-secret-0123456789abcdef" // pragma: allowlist secret

// fakeRightsStore is an in-memory rights.Store.
type fakeRightsStore struct {
	mu      sync.Mutex
	records map[string]*rights.Record
	err     error
}

func newFakeRightsStore() *fakeRightsStore {
	return &fakeRightsStore{records: make(map[string]*rights.Record)}
}

func (s *fakeRightsStore) Create(_ context.Context, rec *rights.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	if _, ok := s.records[rec.ID]; ok {
		return storage.ErrAlreadyExists
	}

	stored := *rec
	s.records[rec.ID] = &stored

	return nil
}

func (s *fakeRightsStore) Get(_ context.Context, id string) (*rights.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, rights.ErrNotFound
	}

	out := *rec

	return &out, nil
}

func (s *fakeRightsStore) List(_ context.Context, f rights.Filter) ([]*rights.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	var out []*rights.Record

	for _, rec := range s.records {
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, rec.ID) {
			continue
		}

		if f.ReleaseID != "" && (rec.ReleaseID == nil || *rec.ReleaseID != f.ReleaseID) {
			continue
		}

		if f.BookID != "" && (rec.BookID == nil || *rec.BookID != f.BookID) {
			continue
		}

		if f.Territory != "" && rec.Territory != f.Territory {
			continue
		}

		if f.Status != "" && rec.Status != f.Status {
			continue
		}

		c := *rec
		out = append(out, &c)
	}

	slices.SortFunc(out, func(a, b *rights.Record) int { return a.CreatedAt.Compare(b.CreatedAt) })

	return out, nil
}

func (s *fakeRightsStore) Update(_ context.Context, id string, changes rights.Changes) (*rights.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, rights.ErrNotFound
	}

	for column, value := range changes {
		switch column {
		case "notes":
			v := value.(string)
			rec.Notes = &v
		case "status":
			rec.Status = value.(string)
		case "exclusive":
			rec.Exclusive = value.(bool)
		case "updated_at":
			rec.UpdatedAt = value.(time.Time)
		}
	}

	out := *rec

	return &out, nil
}

func (s *fakeRightsStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return rights.ErrNotFound
	}

	delete(s.records, id)

	return nil
}

// fakeChapterStore is an in-memory chapters.Store.
type fakeChapterStore struct {
	mu      sync.Mutex
	records map[string]*chapters.Record
}

func newFakeChapterStore() *fakeChapterStore {
	return &fakeChapterStore{records: make(map[string]*chapters.Record)}
}

func (s *fakeChapterStore) Create(_ context.Context, rec *chapters.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	s.records[rec.ID] = &stored

	return nil
}

func (s *fakeChapterStore) Get(_ context.Context, id string) (*chapters.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, chapters.ErrNotFound
	}

	out := *rec

	return &out, nil
}

func (s *fakeChapterStore) List(_ context.Context, f chapters.Filter) ([]*chapters.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*chapters.Record

	for _, rec := range s.records {
		if f.BookID != "" && rec.BookID != f.BookID {
			continue
		}

		if f.AuthorID != "" && (rec.AuthorID == nil || *rec.AuthorID != f.AuthorID) {
			continue
		}

		c := *rec
		out = append(out, &c)
	}

	slices.SortFunc(out, func(a, b *chapters.Record) int { return a.ChapterNumber - b.ChapterNumber })

	return out, nil
}

func (s *fakeChapterStore) Update(_ context.Context, id string, changes chapters.Changes) (*chapters.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, chapters.ErrNotFound
	}

	for column, value := range changes {
		switch column {
		case "title":
			rec.Title = value.(string)
		case "status":
			rec.Status = value.(string)
		case "updated_at":
			rec.UpdatedAt = value.(time.Time)
		}
	}

	out := *rec

	return &out, nil
}

func (s *fakeChapterStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return chapters.ErrNotFound
	}

	delete(s.records, id)

	return nil
}

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.events)
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

var errBackendDown = errors.New("connection refused")

// testEnv bundles a server with the collaborators tests inspect.
type testEnv struct {
	server    *Server
	handler   http.Handler
	rights    *fakeRightsStore
	chapters  *fakeChapterStore
	keys      *storage.InMemoryKeyStore
	tokens    *auth.TokenService
	publisher *recordingPublisher
	config    *ServerConfig
}

type testOption func(cfg *ServerConfig, deps *Dependencies, limits *ratelimit.Config)

func withEnvironment(env config.Environment) testOption {
	return func(_ *ServerConfig, deps *Dependencies, limits *ratelimit.Config) {
		deps.CORS.Environment = env
		limits.Environment = env
	}
}

func withClassLimit(class ratelimit.Class, limit ratelimit.Limit) testOption {
	return func(_ *ServerConfig, _ *Dependencies, limits *ratelimit.Config) {
		limits.Classes[class] = limit
	}
}

func withHealth(h HealthChecker) testOption {
	return func(_ *ServerConfig, deps *Dependencies, _ *ratelimit.Config) {
		deps.Health = h
	}
}

func newTestEnv(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	tokens, err := auth.NewTokenService(&auth.Config{Secret: testSecret, TokenTTL: time.Hour, Issuer: "hardban-test"})
	require.NoError(t, err)

	cfg := &ServerConfig{
		Port:            8080,
		Host:            "127.0.0.1",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
		LogLevel:        slog.LevelInfo,
		MaxRequestSize:  64 << 10,
		UploadDir:       t.TempDir(),
		UploadMaxBytes:  1 << 20,
	}

	env := &testEnv{
		rights:    newFakeRightsStore(),
		chapters:  newFakeChapterStore(),
		keys:      storage.NewInMemoryKeyStore(),
		tokens:    tokens,
		publisher: &recordingPublisher{},
		config:    cfg,
	}

	deps := Dependencies{
		Rights:      env.rights,
		Chapters:    env.chapters,
		ServiceKeys: env.keys,
		Tokens:      tokens,
		Publisher:   env.publisher,
		CORS:        &middleware.CORSConfig{Environment: config.Test, AllowCredentials: true, MaxAge: 10 * time.Minute},
		Logger:      logger,
	}

	limits := &ratelimit.Config{
		Environment: config.Test,
		Classes:     ratelimit.DefaultLimits(),
		Tiers:       ratelimit.DefaultTierLimits(),
	}

	for _, opt := range opts {
		opt(cfg, &deps, limits)
	}

	store := ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{Logger: logger})
	registry := ratelimit.NewRegistryWithStore(limits, store, logger)

	t.Cleanup(func() { _ = registry.Close() })

	deps.Limits = registry

	env.server = NewServer(cfg, deps)
	env.handler = env.server.Handler()

	return env
}

// token issues a bearer token for a caller.
func (e *testEnv) token(t *testing.T, userID, role, tier string) string {
	t.Helper()

	token, _, err := e.tokens.Issue(auth.Claims{Subject: userID, Role: role, Tier: tier})
	require.NoError(t, err)

	return token
}

// serviceKey stores an active key and returns its plaintext.
func (e *testEnv) serviceKey(t *testing.T, ownerID, role string) (string, *storage.ServiceKey) {
	t.Helper()

	plaintext, err := storage.GenerateServiceKey(ownerID)
	require.NoError(t, err)

	key := &storage.ServiceKey{
		ID:        "key-" + ownerID,
		Key:       plaintext,
		OwnerID:   ownerID,
		Name:      "test key",
		Role:      role,
		Tier:      string(ratelimit.TierFree),
		CreatedAt: time.Now(),
		Active:    true,
	}
	require.NoError(t, e.keys.Add(context.Background(), key))

	return plaintext, key
}

// do serves a request with an optional JSON body and bearer token.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())

	return out
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()

	require.Equal(t, contentTypeProblemJSON, rec.Header().Get("Content-Type"))

	return decodeBody[ProblemDetail](t, rec)
}
