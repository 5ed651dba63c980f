package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cewkb/kbsearch/internal/browse"
	"github.com/cewkb/kbsearch/internal/catalog"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/search"
)

func TestSearchArticles_BeforeLoad(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/articles/search")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	env := decode[SearchArticlesResponse](t, resp.Body.Bytes())
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAVAILABLE", env.Error.Code)
}

func TestSearchArticles_ListsNewestFirst(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)

	resp := ts.api.Get("/api/v1/articles/search")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decode[SearchArticlesResponse](t, resp.Body.Bytes())
	assert.True(t, env.Success)
	assert.Equal(t, 1, env.V)

	got := env.Data
	assert.False(t, got.Searched)
	assert.Equal(t, 7, got.Total)
	assert.Equal(t, 2, got.TotalPages)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, 5, got.PageSize)
	assert.True(t, got.HasMore)
	assert.False(t, got.HasPrev)
	assert.Equal(t, uint64(1), got.DataVersion)
	assert.Nil(t, got.Facets)
	require.Len(t, got.Items, 5)
	assert.Equal(t, "a7", got.Items[0].ID)
	assert.Equal(t, "a3", got.Items[4].ID)
	assert.Equal(t, []string{}, got.Suggestions)
}

func TestSearchArticles_TextQuery(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)

	resp := ts.api.Get("/api/v1/articles/search?q=vpn")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	got := decode[SearchArticlesResponse](t, resp.Body.Bytes()).Data
	assert.True(t, got.Searched)
	assert.Equal(t, "vpn", got.Query)
	require.NotEmpty(t, got.Items)
	assert.Equal(t, "a3", got.Items[0].ID)
	assert.Contains(t, got.Suggestions, "VPN Setup")

	// Dangling tag references are dropped from the resolved list.
	assert.Equal(t, []string{"Networking", "Urgent"}, tagNames(got.Items[0]))
}

func TestSearchArticles_ShortQueryListsEverything(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)

	resp := ts.api.Get("/api/v1/articles/search?q=v")
	require.Equal(t, http.StatusOK, resp.Code)

	got := decode[SearchArticlesResponse](t, resp.Body.Bytes()).Data
	assert.False(t, got.Searched)
	assert.Equal(t, 7, got.Total)
}

func TestSearchArticles_Filters(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"tag", "tags=db", []string{"a1"}},
		{"any of tags", "tags=db,net", []string{"a3", "a1"}},
		{"platform", "platform=Mobile", []string{"a7"}},
		{"date range", "start=2024-03-02&end=2024-03-03", []string{"a3", "a2"}},
		{"oldest", "sort=oldest&page_size=2", []string{"a1", "a2"}},
		{"combined", "tags=net&platform=Advisory&sort=oldest", []string{"a3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Get("/api/v1/articles/search?" + tt.query)
			require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
			got := decode[SearchArticlesResponse](t, resp.Body.Bytes()).Data
			assert.Equal(t, tt.want, itemIDs(got.Items))
		})
	}
}

func TestSearchArticles_Pagination(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)

	t.Run("page beyond end clamps", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/articles/search?page=99")
		require.Equal(t, http.StatusOK, resp.Code)
		got := decode[SearchArticlesResponse](t, resp.Body.Bytes()).Data
		assert.Equal(t, 2, got.Page)
		assert.Equal(t, []string{"a2", "a1"}, itemIDs(got.Items))
		assert.True(t, got.HasPrev)
		assert.False(t, got.HasMore)
	})

	t.Run("cumulative", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/articles/search?page=2&page_size=3&mode=cumulative")
		require.Equal(t, http.StatusOK, resp.Code)
		got := decode[SearchArticlesResponse](t, resp.Body.Bytes()).Data
		assert.Len(t, got.Items, 6)
		assert.True(t, got.HasMore)
	})

	t.Run("facets", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/articles/search?facets=true")
		require.Equal(t, http.StatusOK, resp.Code)
		got := decode[SearchArticlesResponse](t, resp.Body.Bytes()).Data
		require.NotNil(t, got.Facets)
		assert.Len(t, got.Facets.Tags, 3)
		assert.Len(t, got.Facets.Platforms, 2)
	})
}

// stallingSearcher never finishes on its own; it returns once ctx ends.
type stallingSearcher struct{}

func (stallingSearcher) Searchable(string) bool { return true }

func (stallingSearcher) Search(ctx context.Context, _ string) ([]search.Hit, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSearchArticles_Timeout(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)
	ts.cfg.SearchTimeout = 20 * time.Millisecond
	ts.searcher = func(*catalog.Snapshot) browse.Searcher { return stallingSearcher{} }

	resp := ts.api.Get("/api/v1/articles/search?q=database")
	assert.Equal(t, http.StatusGatewayTimeout, resp.Code)

	env := decode[SearchArticlesResponse](t, resp.Body.Bytes())
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SEARCH_TIMEOUT", env.Error.Code)

	// The same query succeeds once searches finish in time.
	ts.searcher = func(snap *catalog.Snapshot) browse.Searcher { return snap.Index }
	resp = ts.api.Get("/api/v1/articles/search?q=database")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestSearchArticles_InvalidInput(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)

	tests := []struct {
		name  string
		query string
	}{
		{"bad sort", "sort=popular"},
		{"bad mode", "mode=infinite"},
		{"bad date", "start=yesterday"},
		{"inverted range", "start=2024-03-05&end=2024-03-01"},
		{"page size too big", "page_size=1000"},
		{"negative page", "page=-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Get("/api/v1/articles/search?" + tt.query)
			assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
			env := decode[SearchArticlesResponse](t, resp.Body.Bytes())
			require.NotNil(t, env.Error)
			assert.Equal(t, "INVALID_INPUT", env.Error.Code)
		})
	}
}

func TestGetArticle(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)

	resp := ts.api.Get("/api/v1/articles/a3")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	got := decode[dto.ArticleDetail](t, resp.Body.Bytes()).Data
	assert.Equal(t, "VPN Setup", got.Title)
	assert.Equal(t, "Steps for VPN Setup", got.Excerpt)
	assert.Contains(t, got.DescriptionMarkdown, "**VPN Setup**")
	assert.NotNil(t, got.Created)
	assert.Len(t, got.Tags, 2)

	resp = ts.api.Get("/api/v1/articles/nope")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	env := decode[dto.ArticleDetail](t, resp.Body.Bytes())
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestListTags(t *testing.T) {
	ts := setupTestServer(t)

	type tagsBody struct {
		Tags []TagResponse `json:"tags"`
	}

	resp := ts.api.Get("/api/v1/tags")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[tagsBody](t, resp.Body.Bytes()).Data.Tags)

	ts.load(t)
	resp = ts.api.Get("/api/v1/tags")
	require.Equal(t, http.StatusOK, resp.Code)

	counts := map[string]int{}
	for _, tag := range decode[tagsBody](t, resp.Body.Bytes()).Data.Tags {
		counts[tag.ID] = tag.Articles
	}
	assert.Equal(t, map[string]int{"db": 1, "net": 1, "urgent": 1}, counts)
}

func TestListPlatforms(t *testing.T) {
	ts := setupTestServer(t)
	ts.load(t)

	resp := ts.api.Get("/api/v1/platforms")
	require.Equal(t, http.StatusOK, resp.Code)

	got := decode[struct {
		Platforms []PlatformResponse `json:"platforms"`
	}](t, resp.Body.Bytes()).Data.Platforms
	require.Len(t, got, 6)

	assert.Equal(t, "Advisory", got[0].Name)
	assert.True(t, got[0].Known)
	assert.Equal(t, 6, got[0].Articles)
	assert.Contains(t, got[0].Segments, "MEAC")

	last := got[len(got)-1]
	assert.Equal(t, "Mobile", last.Name)
	assert.False(t, last.Known)
	assert.Equal(t, 1, last.Articles)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a, ,b,a "))
}

func itemIDs(items []dto.ArticleSummary) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func tagNames(s dto.ArticleSummary) []string {
	names := make([]string, len(s.Tags))
	for i, tag := range s.Tags {
		names[i] = tag.Name
	}
	return names
}
