package dto

import (
	"time"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/util"
)

// ExcerptLength is the rune budget for list excerpts.
const ExcerptLength = 160

// ArticleSummary is an article as shown in a result list.
type ArticleSummary struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Excerpt     string       `json:"excerpt"`
	Category    string       `json:"category,omitempty"`
	Platform    string       `json:"platform,omitempty"`
	Segment     string       `json:"segment,omitempty"`
	DateCreated string       `json:"date_created"`
	Created     *time.Time   `json:"created,omitempty"` // absent when DateCreated is malformed
	Tags        []domain.Tag `json:"tags"`
}

// ArticleDetail is a full article with rendered bodies.
type ArticleDetail struct {
	ArticleSummary
	Description         string   `json:"description"` // HTML as stored
	DescriptionMarkdown string   `json:"description_markdown"`
	Solution            string   `json:"solution,omitempty"`
	SolutionMarkdown    string   `json:"solution_markdown,omitempty"`
	Images              []string `json:"images"`
	UserID              string   `json:"user_id,omitempty"`
}

// Enricher denormalizes articles for clients: tag IDs become tags, HTML
// becomes plain text or markdown.
//
// Dangling tag references are dropped, never reported.
type Enricher struct {
	tags domain.TagIndex
}

// NewEnricher creates an enricher over a tag set.
func NewEnricher(tags domain.TagIndex) *Enricher {
	if tags == nil {
		tags = domain.TagIndex{}
	}
	return &Enricher{tags: tags}
}

// Summary builds the list form of a.
func (e *Enricher) Summary(a domain.Article) ArticleSummary {
	s := ArticleSummary{
		ID:          a.ID,
		Title:       a.Title,
		Excerpt:     util.Excerpt(a.Description, ExcerptLength),
		Category:    a.Category,
		Platform:    a.Platform,
		Segment:     a.Segment,
		DateCreated: a.DateCreated,
		Tags:        e.tags.Resolve(a.Tags),
	}
	if t, err := a.Created(); err == nil {
		s.Created = &t
	}
	return s
}

// Summaries builds the list form of each article, preserving order.
func (e *Enricher) Summaries(articles []domain.Article) []ArticleSummary {
	out := make([]ArticleSummary, len(articles))
	for i, a := range articles {
		out[i] = e.Summary(a)
	}
	return out
}

// Detail builds the full form of a.
func (e *Enricher) Detail(a domain.Article) ArticleDetail {
	d := ArticleDetail{
		ArticleSummary:      e.Summary(a),
		Description:         a.Description,
		DescriptionMarkdown: util.Markdown(a.Description),
		Solution:            a.Solution,
		Images:              []string{},
		UserID:              a.UserID,
	}
	if a.Solution != "" {
		d.SolutionMarkdown = util.Markdown(a.Solution)
	}
	for _, u := range []string{a.ImageURL1, a.ImageURL2} {
		if u != "" {
			d.Images = append(d.Images, u)
		}
	}
	return d
}
