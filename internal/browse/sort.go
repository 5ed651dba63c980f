package browse

import (
	"slices"
	"strings"
	"time"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/errors"
)

// SortOrder orders articles by creation time.
type SortOrder string

// Sort orders.
const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ParseSortOrder parses a sort order. Empty means newest.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortOldest:
		return SortOldest, nil
	default:
		return "", errors.InvalidInputf("invalid sort %q (must be newest or oldest)", s)
	}
}

func (o SortOrder) String() string { return string(o) }

type datedArticle struct {
	article domain.Article
	created time.Time
}

// Sort returns candidates ordered by creation time. The sort is stable:
// articles created at the same instant keep their input order. Unparseable
// timestamps sort as the zero time, so they come last under newest and first
// under oldest.
func Sort(candidates []domain.Article, order SortOrder) []domain.Article {
	dated := make([]datedArticle, len(candidates))
	for i, a := range candidates {
		dated[i] = datedArticle{article: a, created: a.CreatedOrZero()}
	}

	cmp := func(a, b datedArticle) int { return a.created.Compare(b.created) }
	if order != SortOldest {
		cmp = func(a, b datedArticle) int { return b.created.Compare(a.created) }
	}
	slices.SortStableFunc(dated, cmp)

	out := make([]domain.Article, len(dated))
	for i, d := range dated {
		out[i] = d.article
	}
	return out
}

