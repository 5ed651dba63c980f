package search

import (
	"context"
	"testing"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestIndex(t *testing.T, articles []domain.Article, tags []domain.Tag) *Index {
	t.Helper()

	ix, err := Build(context.Background(), articles, tags, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Article.ID
	}
	return ids
}

func TestSearch_TypoToleranceRanksCloseMatchFirst(t *testing.T) {
	ix := buildTestIndex(t, []domain.Article{
		{ID: "login", Title: "Login Flow"},
		{ID: "db", Title: "Database Migration Guide"},
	}, nil)

	hits, err := ix.Search(context.Background(), "databse")
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, "db", hits[0].Article.ID)
	for _, h := range hits[1:] {
		if h.Article.ID == "login" {
			assert.Less(t, h.Score, hits[0].Score)
		}
	}
}

func TestSearch_ShortQueriesReturnNothing(t *testing.T) {
	ix := buildTestIndex(t, []domain.Article{{ID: "a", Title: "A guide"}}, nil)

	for _, q := range []string{"", " ", "a", "  a  ", "\tb\n"} {
		hits, err := ix.Search(context.Background(), q)
		require.NoError(t, err, "query %q", q)
		assert.Empty(t, hits, "query %q", q)
		assert.NotNil(t, hits)
	}
}

func TestBuild_MinQueryLengthFloor(t *testing.T) {
	opts := DefaultOptions()
	opts.MinQueryLength = 1
	ix, err := Build(context.Background(), []domain.Article{{ID: "a", Title: "A guide"}}, nil, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	assert.Equal(t, MinQueryLength, ix.Options().MinQueryLength)
	assert.False(t, ix.Searchable("a"))
	hits, err := ix.Search(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_EmptyCollection(t *testing.T) {
	ix := buildTestIndex(t, nil, nil)

	hits, err := ix.Search(context.Background(), "ab")
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 0, ix.Len())
}

func TestSearch_Fields(t *testing.T) {
	articles := []domain.Article{
		{ID: "html", Title: "Connectivity", Description: "<p>Restart the <b>router</b> first</p>"},
		{ID: "accent", Title: "Café Wi-Fi setup"},
		{ID: "tagged", Title: "Queue jam", Tags: []string{"tag-prn-01"}},
		{ID: "plain", Title: "Password Reset"},
	}
	tags := []domain.Tag{{ID: "tag-prn-01", Name: "Printers"}}
	ix := buildTestIndex(t, articles, tags)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"description plain text", "router", "html"},
		{"accent folded", "cafe", "accent"},
		{"accent in query", "CAFÉ", "accent"},
		{"tag name", "printers", "tagged"},
		{"tag id", "tag-prn-01", "tagged"},
		{"partial word", "passw", "plain"},
		{"typo", "pasword", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := ix.Search(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Contains(t, hitIDs(hits), tt.want)
		})
	}
}

func TestSearch_MarkupIsNotIndexed(t *testing.T) {
	ix := buildTestIndex(t, []domain.Article{
		{ID: "a", Title: "Alpha", Description: `<span class="highlight">Beta</span>`},
	}, nil)

	hits, err := ix.Search(context.Background(), "highlight")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_DeterministicTieOrder(t *testing.T) {
	ix := buildTestIndex(t, []domain.Article{
		{ID: "b", Title: "VPN Setup"},
		{ID: "c", Title: "Printer Setup"},
		{ID: "a", Title: "VPN Setup"},
	}, nil)

	first, err := ix.Search(context.Background(), "vpn")
	require.NoError(t, err)
	second, err := ix.Search(context.Background(), "vpn")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, hitIDs(first))
	assert.Equal(t, first, second)
}

func TestSearch_MaxResults(t *testing.T) {
	articles := []domain.Article{
		{ID: "1", Title: "Reset token"},
		{ID: "2", Title: "Reset password"},
		{ID: "3", Title: "Reset device"},
	}
	opts := DefaultOptions()
	opts.MaxResults = 2
	ix, err := Build(context.Background(), articles, nil, opts)
	require.NoError(t, err)
	defer ix.Close()

	hits, err := ix.Search(context.Background(), "reset")
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearch_CancelledContext(t *testing.T) {
	ix := buildTestIndex(t, []domain.Article{{ID: "a", Title: "Database"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.Search(ctx, "database")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, []domain.Article{{ID: "a", Title: "x"}}, nil, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_DuplicateIDsCollapse(t *testing.T) {
	ix := buildTestIndex(t, []domain.Article{
		{ID: "a", Title: "Old title"},
		{ID: "a", Title: "New title"},
	}, nil)

	assert.Equal(t, 1, ix.Len())
	hits, err := ix.Search(context.Background(), "new")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "New title", hits[0].Article.Title)
}

func TestIndex_ReferenceCounting(t *testing.T) {
	ix, err := Build(context.Background(), []domain.Article{{ID: "a", Title: "Database"}}, nil, DefaultOptions())
	require.NoError(t, err)

	require.True(t, ix.Retain())
	require.NoError(t, ix.Close())

	hits, err := ix.Search(context.Background(), "database")
	require.NoError(t, err, "still retained")
	assert.Len(t, hits, 1)

	require.NoError(t, ix.Release())

	_, err = ix.Search(context.Background(), "database")
	assert.ErrorIs(t, err, ErrIndexClosed)
	assert.False(t, ix.Retain())
}

func TestNewArticleDocument(t *testing.T) {
	tags := domain.IndexTags([]domain.Tag{{ID: "t1", Name: "Réseau"}})
	doc := NewArticleDocument(domain.Article{
		ID:          "a",
		Title:       "Über VPN",
		Description: "<p>Hello <i>world</i></p>",
		Tags:        []string{"t1", "dangling"},
	}, tags)

	assert.Equal(t, "uber vpn", doc.Title)
	assert.Equal(t, "hello world", doc.Description)
	assert.Equal(t, []string{"reseau"}, doc.TagNames)
	assert.Equal(t, []string{"t1", "dangling"}, doc.TagIDs)

	m := doc.ToMap()
	assert.Equal(t, "uber vpn", m[fieldTitle])
	assert.Contains(t, m, fieldTagIDs)
}
