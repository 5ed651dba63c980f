package browse

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/search"
)

// MaxSuggestions caps the title suggestions returned with a text search.
const MaxSuggestions = 5

// Searcher is the text search stage. *search.Index implements it.
type Searcher interface {
	Searchable(q string) bool
	Search(ctx context.Context, q string) ([]search.Hit, error)
}

// Query is everything that determines one pipeline run.
type Query struct {
	Text     string
	Criteria Criteria
	Sort     SortOrder
	Page     int
	PageSize int
	Mode     Mode
}

// Result is the output of one pipeline run.
type Result struct {
	Page        Page[domain.Article]
	Searched    bool     // a text search contributed to the candidates
	Suggestions []string // top titles by relevance, before filtering

	// Ordered is the full filtered and sorted list Page was cut from.
	Ordered []domain.Article
}

// Run executes the pipeline in fixed order:
//
//  1. text search when the query is searchable, else the whole collection
//  2. Filter
//  3. Sort
//  4. Paginate
//
// A nil searcher finds nothing for searchable queries. Search errors,
// including context cancellation, are returned as is.
func Run(ctx context.Context, idx Searcher, articles []domain.Article, q Query) (Result, error) {
	var res Result

	candidates := articles
	if idx != nil && idx.Searchable(q.Text) {
		hits, err := idx.Search(ctx, q.Text)
		if err != nil {
			return Result{}, err
		}
		res.Searched = true
		res.Suggestions = suggestions(hits, MaxSuggestions)

		candidates = make([]domain.Article, len(hits))
		for i, h := range hits {
			candidates[i] = h.Article
		}
	} else if idx == nil && utf8.RuneCountInString(strings.TrimSpace(q.Text)) >= search.DefaultOptions().MinQueryLength {
		res.Searched = true
		candidates = nil
	}

	filtered := Filter(candidates, q.Criteria)
	ordered := Sort(filtered, q.Sort)
	res.Ordered = ordered
	res.Page = Paginate(ordered, q.PageSize, q.Page, q.Mode)
	if res.Suggestions == nil {
		res.Suggestions = []string{}
	}
	return res, nil
}

func suggestions(hits []search.Hit, limit int) []string {
	out := make([]string, 0, min(limit, len(hits)))
	seen := make(map[string]struct{}, limit)
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		if _, dup := seen[h.Article.Title]; dup {
			continue
		}
		seen[h.Article.Title] = struct{}{}
		out = append(out, h.Article.Title)
	}
	return out
}
