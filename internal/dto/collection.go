package dto

import (
	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/errors"
)

// Policy decides what an invalid record does to a load.
type Policy string

// Mapping policies.
const (
	// PolicySkip drops invalid records and reports them.
	PolicySkip Policy = "skip"
	// PolicyStrict fails the whole load on the first invalid record.
	PolicyStrict Policy = "strict"
)

// Payload is a full wire collection, as served by the backend or stored in a
// seed file.
type Payload struct {
	Articles []Article `json:"articles"`
	Tags     []Tag     `json:"tags"`
}

// MapCollection maps a payload under policy. skipped lists the records
// dropped under PolicySkip. Tags come back ordered by name.
func (m *Mapper) MapCollection(p Payload, policy Policy) (col domain.Collection, skipped []error, err error) {
	col.Tags = make([]domain.Tag, 0, len(p.Tags))
	seenTags := make(map[string]struct{}, len(p.Tags))
	for i, wt := range p.Tags {
		t, err := m.ToTag(i, wt)
		if err == nil {
			err = claim(seenTags, "tag", i, t.ID)
		}
		if err != nil {
			if policy == PolicyStrict {
				return domain.Collection{}, nil, err
			}
			skipped = append(skipped, err)
			continue
		}
		col.Tags = append(col.Tags, t)
	}
	domain.SortTagsByName(col.Tags)

	col.Articles = make([]domain.Article, 0, len(p.Articles))
	seenArticles := make(map[string]struct{}, len(p.Articles))
	for i, wa := range p.Articles {
		a, err := m.ToArticle(i, wa)
		if err == nil {
			err = claim(seenArticles, "article", i, a.ID)
		}
		if err != nil {
			if policy == PolicyStrict {
				return domain.Collection{}, nil, err
			}
			skipped = append(skipped, err)
			continue
		}
		col.Articles = append(col.Articles, a)
	}
	return col, skipped, nil
}

// claim records id as taken. A repeated id is a *MappingError, so the first
// record with a given id is the one that survives.
func claim(seen map[string]struct{}, kind string, index int, id string) error {
	if _, dup := seen[id]; dup {
		return &MappingError{Kind: kind, Index: index, ID: id, Fields: map[string]string{"Id": "duplicate"}}
	}
	seen[id] = struct{}{}
	return nil
}

// ParsePolicy parses a mapping policy name. Empty means skip.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", errors.InvalidInputf("invalid mapping policy %q", s)
	}
}

// FromDomain converts a collection back to its wire form, for snapshots and
// seed files.
func FromDomain(col domain.Collection) Payload {
	p := Payload{
		Articles: make([]Article, len(col.Articles)),
		Tags:     make([]Tag, len(col.Tags)),
	}
	for i, t := range col.Tags {
		p.Tags[i] = Tag{ID: FlexID(t.ID), Name: t.Name}
	}
	for i, a := range col.Articles {
		refs := make([]TagRef, len(a.Tags))
		for j, id := range a.Tags {
			refs[j] = TagRef{ID: FlexID(id)}
		}
		p.Articles[i] = Article{
			ID:          FlexID(a.ID),
			Title:       a.Title,
			Description: a.Description,
			Category:    a.Category,
			Platform:    a.Platform,
			Segment:     a.Segment,
			DateCreated: a.DateCreated,
			Solution:    a.Solution,
			ImageURL1:   a.ImageURL1,
			ImageURL2:   a.ImageURL2,
			UserID:      FlexID(a.UserID),
			Tags:        refs,
		}
	}
	return p
}
