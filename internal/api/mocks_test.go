package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/burka/podpulse/internal/ai/mock"
	"github.com/burka/podpulse/internal/auth"
	"github.com/burka/podpulse/internal/catalog"
	"github.com/burka/podpulse/internal/db"
	"github.com/burka/podpulse/internal/quota"
	"github.com/burka/podpulse/internal/quota/quotatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// mockContent implements ContentStore in memory.
type mockContent struct {
	mu       sync.RWMutex
	tracked  map[uuid.UUID]map[string]db.TrackedPodcast
	charts   []db.ChartPosition
	analyses []db.Analysis
	err      error
}

func newMockContent() *mockContent {
	return &mockContent{tracked: make(map[uuid.UUID]map[string]db.TrackedPodcast)}
}

func (m *mockContent) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockContent) IsTracked(ctx context.Context, userID uuid.UUID, podcastID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.tracked[userID][podcastID]
	return ok, nil
}

func (m *mockContent) TrackPodcast(ctx context.Context, p *db.TrackedPodcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.tracked[p.UserID] == nil {
		m.tracked[p.UserID] = make(map[string]db.TrackedPodcast)
	}
	if _, ok := m.tracked[p.UserID][p.PodcastID]; ok {
		return db.ErrAlreadyTracked
	}
	p.CreatedAt = time.Now()
	m.tracked[p.UserID][p.PodcastID] = *p
	return nil
}

func (m *mockContent) UntrackPodcast(ctx context.Context, userID uuid.UUID, podcastID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.tracked[userID][podcastID]; !ok {
		return db.ErrNotTracked
	}
	delete(m.tracked[userID], podcastID)
	return nil
}

func (m *mockContent) ListTrackedPodcasts(ctx context.Context, userID uuid.UUID) ([]db.TrackedPodcast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]db.TrackedPodcast, 0, len(m.tracked[userID]))
	for _, p := range m.tracked[userID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PodcastID < out[j].PodcastID })
	return out, nil
}

func (m *mockContent) ListChartPositions(ctx context.Context, f db.ChartFilter) ([]db.ChartPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []db.ChartPosition
	for _, p := range m.charts {
		if f.Source != "" && p.Source != f.Source {
			continue
		}
		out = append(out, p)
		if len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockContent) InsertChartPosition(ctx context.Context, p *db.ChartPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	p.ID = int64(len(m.charts) + 1)
	m.charts = append(m.charts, *p)
	return nil
}

func (m *mockContent) ListTrackedChartPositions(ctx context.Context, userID uuid.UUID, limit int) ([]db.ChartPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []db.ChartPosition
	for _, p := range m.charts {
		t, ok := m.tracked[userID][p.PodcastID]
		if !ok || t.Source != p.Source {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockContent) CreateAnalysis(ctx context.Context, a *db.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.analyses = append(m.analyses, *a)
	return nil
}

func (m *mockContent) ListAnalyses(ctx context.Context, userID uuid.UUID, limit int) ([]db.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []db.Analysis
	for _, a := range m.analyses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// catalogFeed serves fixed genre charts.
type catalogFeed map[string][]catalog.ChartEntry

func (f catalogFeed) TopPodcasts(ctx context.Context, genre string) ([]catalog.ChartEntry, error) {
	entries, ok := f[genre]
	if !ok {
		return nil, catalog.ErrUnavailable
	}
	return entries, nil
}

// mockCatalog answers searches from a fixed list.
type mockCatalog struct {
	podcasts []catalog.Podcast
	err      error
	terms    []string
}

func (m *mockCatalog) Search(ctx context.Context, term string, limit int) ([]catalog.Podcast, error) {
	m.terms = append(m.terms, term)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.podcasts) > limit {
		return m.podcasts[:limit], nil
	}
	return m.podcasts, nil
}

// healthFunc adapts a function to HealthChecker.
type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

// testVerifier accepts tokens of the form "token-<uuid>".
func testVerifier() auth.Verifier {
	return auth.VerifierFunc(func(ctx context.Context, token string) (auth.Principal, error) {
		if token == "provider-down" {
			return auth.Principal{}, auth.ErrProviderUnavailable
		}
		id, err := uuid.Parse(strings.TrimPrefix(token, "token-"))
		if err != nil {
			return auth.Principal{}, auth.ErrInvalidToken
		}
		return auth.Principal{UserID: id, Email: "user@example.com"}, nil
	})
}

func tokenFor(userID uuid.UUID) string {
	return "token-" + userID.String()
}

// testEnv is a server wired to in-memory dependencies.
type testEnv struct {
	server   *Server
	store    *quotatest.Store
	content  *mockContent
	analyzer *mock.Provider
	config   *Config
}

func testConfig() *Config {
	return &Config{
		Env:                "test",
		StoreBackend:       BackendPostgres,
		CronSecret:         "cron-secret",
		ResetInterval:      quota.DefaultResetInterval,
		RateLimitRPS:       1000,
		LiveLimitsInterval: 20 * time.Millisecond,
		BillingReturnURL:   "https://app.test/settings/billing",
	}
}

func newTestEnv(t *testing.T, opts ...func(*Config, *Dependencies)) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    quotatest.NewStore(),
		content:  newMockContent(),
		analyzer: mock.New(),
		config:   testConfig(),
	}
	deps := Dependencies{
		Store:    env.store,
		Marks:    env.store,
		Content:  env.content,
		Verifier: testVerifier(),
		Analyzer: env.analyzer,
	}
	for _, opt := range opts {
		opt(env.config, &deps)
	}

	server, err := NewServer(env.config, deps)
	require.NoError(t, err)
	env.server = server
	return env
}

// do sends a request with an optional JSON body and bearer token.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

var errBoom = errors.New("boom")
