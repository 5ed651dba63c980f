package api

import (
	"bufio"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cewkb/kbsearch/internal/ratelimit"
)

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	got := decode[HealthResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "degraded", got.Status)
	assert.False(t, got.Catalog.Loaded)

	ts.load(t)
	_, err := ts.sessions.Create()
	require.NoError(t, err)

	resp = ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	got = decode[HealthResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "healthy", got.Status)
	assert.True(t, got.Catalog.Loaded)
	assert.Equal(t, 7, got.Catalog.Articles)
	assert.Equal(t, 7, got.Catalog.Indexed)
	assert.Equal(t, 3, got.Catalog.Tags)
	assert.Equal(t, "stub", got.Catalog.Source)
	assert.Equal(t, 1, got.Sessions)
}

func TestGetCatalog(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)

	resp := ts.api.Get("/api/v1/catalog")
	require.Equal(t, http.StatusOK, resp.Code)
	got := decode[CatalogStatus](t, resp.Body.Bytes()).Data
	assert.Equal(t, uint64(1), got.Version)
	assert.NotNil(t, got.LoadedAt)
}

func TestRefreshCatalog(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/catalog/refresh")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	got := decode[RefreshResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, uint64(1), got.Version)
	assert.Equal(t, 7, got.Articles)
	assert.Empty(t, got.Error)

	// A failed reload keeps serving the previous snapshot.
	ts.source.err = errors.New("backend down")
	resp = ts.api.Post("/api/v1/catalog/refresh")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	got = decode[RefreshResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, uint64(1), got.Version)
	assert.Contains(t, got.Error, "backend down")
}

func TestRefreshCatalog_RateLimited(t *testing.T) {
	ts := setupTestServer(t)
	limiter := ratelimit.PerMinute(1, 1)
	t.Cleanup(limiter.Stop)
	ts.services.RefreshLimiter = limiter

	resp := ts.api.Post("/api/v1/catalog/refresh")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/catalog/refresh")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	env := decode[RefreshResponse](t, resp.Body.Bytes())
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Greater(t, details["retry_after_seconds"], float64(0))

	// Another client has its own budget.
	resp = ts.api.Post("/api/v1/catalog/refresh", "X-Forwarded-For: 203.0.113.9")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCatalogEvents_Connected(t *testing.T) {
	ts := setupTestServer(t)
	srv := httptest.NewServer(ts.Server)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/v1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected", strings.TrimSpace(line))
}
