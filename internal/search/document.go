// Package search provides typo-tolerant full-text search over the article
// collection using an in-memory Bleve index.
package search

import (
	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/util"
)

// Field names in the index mapping.
const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldTagNames    = "tag_names"
	fieldTagIDs      = "tag_ids"
)

// ArticleDocument is the indexed projection of an article. Text fields are
// folded plain text; the article itself is kept outside the index.
type ArticleDocument struct {
	ID          string
	Title       string
	Description string
	TagNames    []string
	TagIDs      []string
}

// NewArticleDocument projects an article for indexing. Tag IDs with no
// matching tag contribute their ID but no name.
func NewArticleDocument(a domain.Article, tags domain.TagIndex) *ArticleDocument {
	names := tags.Names(a.Tags)
	folded := make([]string, len(names))
	for i, n := range names {
		folded[i] = util.Fold(n)
	}

	return &ArticleDocument{
		ID:          a.ID,
		Title:       util.Fold(a.Title),
		Description: util.Fold(util.PlainText(a.Description)),
		TagNames:    folded,
		TagIDs:      a.Tags,
	}
}

// ToMap converts the document to the field names used by the mapping.
func (d *ArticleDocument) ToMap() map[string]any {
	m := map[string]any{
		fieldTitle: d.Title,
	}
	if d.Description != "" {
		m[fieldDescription] = d.Description
	}
	if len(d.TagNames) > 0 {
		m[fieldTagNames] = d.TagNames
	}
	if len(d.TagIDs) > 0 {
		m[fieldTagIDs] = d.TagIDs
	}
	return m
}
