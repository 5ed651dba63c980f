package browse

import (
	"context"
	"errors"
	"testing"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, articles []domain.Article) *search.Index {
	t.Helper()
	ix, err := search.Build(context.Background(), articles, nil, search.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestRun_SevenArticlesTwoPages(t *testing.T) {
	var xs []domain.Article
	for d, id := range []string{"d0", "d1", "d2", "d3", "d4", "d5", "d6"} {
		xs = append(xs, article(id, d))
	}
	ix := buildIndex(t, xs)

	page1, err := Run(context.Background(), ix, xs, Query{Sort: SortNewest, Page: 1, PageSize: 5})
	require.NoError(t, err)
	page2, err := Run(context.Background(), ix, xs, Query{Sort: SortNewest, Page: 2, PageSize: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{"d6", "d5", "d4", "d3", "d2"}, ids(page1.Page.Items))
	assert.Equal(t, []string{"d1", "d0"}, ids(page2.Page.Items))
	assert.Equal(t, 2, page1.Page.TotalPages)
	assert.Equal(t, 7, page1.Page.Total)
	assert.False(t, page1.Searched)
}

func TestRun_TypoQueryFindsArticle(t *testing.T) {
	xs := []domain.Article{
		{ID: "login", Title: "Login Flow", DateCreated: "2024-01-02"},
		{ID: "db", Title: "Database Migration Guide", DateCreated: "2024-01-01"},
	}
	ix := buildIndex(t, xs)

	res, err := Run(context.Background(), ix, xs, Query{Text: "databse", Page: 1, PageSize: 5})
	require.NoError(t, err)

	assert.True(t, res.Searched)
	assert.Contains(t, ids(res.Page.Items), "db")
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "Database Migration Guide", res.Suggestions[0])
}

func TestRun_TagSelectionAndReset(t *testing.T) {
	xs := []domain.Article{article("x", 0), article("y", 1, "urgent")}
	ix := buildIndex(t, xs)

	withTag, err := Run(context.Background(), ix, xs, Query{Criteria: Criteria{TagIDs: []string{"urgent"}}, Page: 1, PageSize: 5})
	require.NoError(t, err)
	cleared, err := Run(context.Background(), ix, xs, Query{Criteria: Criteria{TagIDs: []string{}}, Page: 1, PageSize: 5})
	require.NoError(t, err)

	assert.NotContains(t, ids(withTag.Page.Items), "x")
	assert.Contains(t, ids(cleared.Page.Items), "x")
}

func TestRun_EmptyCollection(t *testing.T) {
	ix := buildIndex(t, nil)

	res, err := Run(context.Background(), ix, nil, Query{Text: "ab", Page: 1, PageSize: 5})
	require.NoError(t, err)

	assert.Empty(t, res.Page.Items)
	assert.Equal(t, 0, res.Page.TotalPages)
	assert.Equal(t, 0, res.Page.Total)
}

func TestRun_ShortQueryMatchesNoQuery(t *testing.T) {
	xs := randomCollection(3, 60)
	ix := buildIndex(t, xs)
	base := Query{Criteria: Criteria{Platform: "Advisory"}, Sort: SortOldest, Page: 2, PageSize: 4}

	want, err := Run(context.Background(), ix, xs, base)
	require.NoError(t, err)

	for _, text := range []string{"", " ", "v", " p ", "é"} {
		q := base
		q.Text = text
		got, err := Run(context.Background(), ix, xs, q)
		require.NoError(t, err)
		assert.Equal(t, want.Page, got.Page, "query %q", text)
		assert.False(t, got.Searched)
	}
}

func TestRun_Deterministic(t *testing.T) {
	xs := randomCollection(11, 80)
	ix := buildIndex(t, xs)
	q := Query{Text: "pasword", Criteria: Criteria{TagIDs: []string{"t1"}}, Sort: SortNewest, Page: 1, PageSize: 5}

	first, err := Run(context.Background(), ix, xs, q)
	require.NoError(t, err)
	for range 5 {
		again, err := Run(context.Background(), ix, xs, q)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRun_SearchThenDateOrder(t *testing.T) {
	xs := []domain.Article{
		{ID: "older-exact", Title: "VPN", DateCreated: "2024-01-01"},
		{ID: "newer-partial", Title: "VPN client reinstall notes", DateCreated: "2024-03-01"},
		{ID: "unrelated", Title: "Printer", DateCreated: "2024-02-01"},
	}
	ix := buildIndex(t, xs)

	res, err := Run(context.Background(), ix, xs, Query{Text: "vpn", Sort: SortNewest, Page: 1, PageSize: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{"newer-partial", "older-exact"}, ids(res.Page.Items))
}

func TestRun_CumulativeMode(t *testing.T) {
	xs := randomCollection(5, 12)
	ix := buildIndex(t, xs)

	res, err := Run(context.Background(), ix, xs, Query{Page: 2, PageSize: 5, Mode: Cumulative})
	require.NoError(t, err)
	assert.Len(t, res.Page.Items, 10)
	assert.True(t, res.Page.HasMore)
}

type failingSearcher struct{ err error }

func (f failingSearcher) Searchable(string) bool { return true }
func (f failingSearcher) Search(context.Context, string) ([]search.Hit, error) {
	return nil, f.err
}

func TestRun_PropagatesSearchError(t *testing.T) {
	boom := errors.New("boom")

	_, err := Run(context.Background(), failingSearcher{err: boom}, nil, Query{Text: "vpn"})

	assert.ErrorIs(t, err, boom)
}

func TestRun_NilSearcher(t *testing.T) {
	xs := []domain.Article{article("a", 0)}

	short, err := Run(context.Background(), nil, xs, Query{Text: "a", Page: 1})
	require.NoError(t, err)
	assert.Len(t, short.Page.Items, 1)

	long, err := Run(context.Background(), nil, xs, Query{Text: "article", Page: 1})
	require.NoError(t, err)
	assert.Empty(t, long.Page.Items)
}

func TestSuggestions_DedupesAndCaps(t *testing.T) {
	hits := []search.Hit{
		{Article: domain.Article{Title: "A"}},
		{Article: domain.Article{Title: "A"}},
		{Article: domain.Article{Title: "B"}},
		{Article: domain.Article{Title: "C"}},
	}
	assert.Equal(t, []string{"A", "B"}, suggestions(hits, 2))
	assert.Equal(t, []string{"A", "B", "C"}, suggestions(hits, 5))
}

func TestBuildFacets(t *testing.T) {
	col := domain.Collection{
		Articles: []domain.Article{
			{ID: "1", Platform: "Advisory", Tags: []string{"t2", "t1", "t1"}},
			{ID: "2", Platform: "Private Bank", Tags: []string{"t2", "ghost"}},
			{ID: "3", Platform: "Advisory"},
			{ID: "4", Platform: " "},
		},
		Tags: []domain.Tag{{ID: "t1", Name: "vpn"}, {ID: "t2", Name: "Access"}, {ID: "t3", Name: "Unused"}},
	}

	f := BuildFacets(col)

	assert.Equal(t, []TagFacet{{ID: "t2", Name: "Access", Count: 2}, {ID: "t1", Name: "vpn", Count: 1}}, f.Tags)
	assert.Equal(t, []PlatformFacet{{Name: "Advisory", Count: 2}, {Name: "Private Bank", Count: 1}}, f.Platforms)
}
