package search

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/util"
)

// Field boosts. Title matches outrank tag matches, which outrank body text.
const (
	boostTitle       = 3.0
	boostTagNames    = 2.0
	boostDescription = 1.0
	boostTagID       = 1.0
	boostPrefix      = 0.5
	minPrefixLength  = 2
)

// Hit is one search result.
type Hit struct {
	Article domain.Article `json:"article"`
	Score   float64        `json:"score"`
}

// Searchable reports whether query is long enough to run a text search.
func (ix *Index) Searchable(q string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(q)) >= ix.opts.MinQueryLength
}

// Search returns articles matching q, most relevant first. Equal scores are
// ordered by article ID so results are deterministic.
//
// Queries shorter than MinQueryLength after trimming return an empty slice and
// no error. A cancelled ctx aborts the search with ctx's error.
func (ix *Index) Search(ctx context.Context, q string) ([]Hit, error) {
	if !ix.Searchable(q) {
		return []Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil, ErrIndexClosed
	}
	if ix.index == nil {
		return []Hit{}, nil
	}

	size := len(ix.articles)
	if ix.opts.MaxResults > 0 {
		size = min(size, ix.opts.MaxResults)
	}

	req := bleve.NewSearchRequestOptions(ix.buildQuery(q), size, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		a, ok := ix.articles[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Article: a, Score: h.Score})
	}
	return hits, nil
}

// buildQuery ORs together, for the folded query text:
//   - fuzzy match per text field, boosted by field
//   - prefix match per token on title and tag names, for partial words
//   - exact match of the raw query against tag IDs
func (ix *Index) buildQuery(raw string) query.Query {
	trimmed := strings.TrimSpace(raw)
	folded := util.Fold(trimmed)

	fields := []struct {
		name  string
		boost float64
	}{
		{fieldTitle, boostTitle},
		{fieldTagNames, boostTagNames},
		{fieldDescription, boostDescription},
	}

	var queries []query.Query
	for _, f := range fields {
		exact := bleve.NewMatchQuery(folded)
		exact.SetField(f.name)
		exact.SetBoost(f.boost)
		queries = append(queries, exact)

		if ix.opts.Fuzziness > 0 {
			fuzzy := bleve.NewMatchQuery(folded)
			fuzzy.SetField(f.name)
			fuzzy.SetFuzziness(ix.opts.Fuzziness)
			fuzzy.SetBoost(f.boost * 0.8)
			queries = append(queries, fuzzy)
		}
	}

	for _, tok := range tokens(folded) {
		if utf8.RuneCountInString(tok) < minPrefixLength {
			continue
		}
		for _, field := range []string{fieldTitle, fieldTagNames} {
			p := bleve.NewPrefixQuery(tok)
			p.SetField(field)
			p.SetBoost(boostPrefix)
			queries = append(queries, p)
		}
	}

	idQuery := bleve.NewTermQuery(trimmed)
	idQuery.SetField(fieldTagIDs)
	idQuery.SetBoost(boostTagID)
	queries = append(queries, idQuery)

	return bleve.NewDisjunctionQuery(queries...)
}

// tokens splits s the way the text analyzer does, closely enough for
// building prefix queries.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
