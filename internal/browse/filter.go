// Package browse implements the article query pipeline: text search,
// tag/platform/date filtering, date ordering and pagination.
//
// Every stage is a pure function over a slice of articles. Inputs are never
// mutated; each stage returns a new slice.
package browse

import (
	"slices"
	"time"

	"github.com/cewkb/kbsearch/internal/domain"
)

// Criteria are the conjunctive filter constraints. The zero value matches
// every article.
type Criteria struct {
	TagIDs   []string   `json:"tag_ids"`
	Platform string     `json:"platform"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}

// IsZero reports whether c imposes no constraint.
func (c Criteria) IsZero() bool {
	return len(c.TagIDs) == 0 && c.Platform == "" && c.Start == nil && c.End == nil
}

// Clone returns a deep copy of c.
func (c Criteria) Clone() Criteria {
	out := Criteria{TagIDs: slices.Clone(c.TagIDs), Platform: c.Platform}
	if c.Start != nil {
		s := *c.Start
		out.Start = &s
	}
	if c.End != nil {
		e := *c.End
		out.End = &e
	}
	return out
}

// Filter keeps articles that satisfy every constraint in c:
//   - tags: the article carries at least one selected tag, or none are selected
//   - platform: exact match, or no platform selected
//   - dates: created within [Start, End], each bound optional
//
// An End with no time of day covers that whole day. An article whose
// DateCreated cannot be parsed fails the date constraint when either bound
// is set and passes it otherwise.
func Filter(candidates []domain.Article, c Criteria) []domain.Article {
	out := make([]domain.Article, 0, len(candidates))
	if c.IsZero() {
		return append(out, candidates...)
	}

	wanted := make(map[string]struct{}, len(c.TagIDs))
	for _, id := range c.TagIDs {
		wanted[id] = struct{}{}
	}
	end := endBound(c.End)

	for _, a := range candidates {
		if !matchesTags(a, wanted) {
			continue
		}
		if c.Platform != "" && a.Platform != c.Platform {
			continue
		}
		if !inRange(a, c.Start, end) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func matchesTags(a domain.Article, wanted map[string]struct{}) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, id := range a.Tags {
		if _, ok := wanted[id]; ok {
			return true
		}
	}
	return false
}

func inRange(a domain.Article, start, end *time.Time) bool {
	if start == nil && end == nil {
		return true
	}
	created, err := a.Created()
	if err != nil {
		return false
	}
	if start != nil && created.Before(*start) {
		return false
	}
	if end != nil && created.After(*end) {
		return false
	}
	return true
}

// InvertedRange reports whether start falls after end once a midnight end
// bound is widened to the whole day. Open bounds never invert.
func InvertedRange(start, end *time.Time) bool {
	if start == nil || end == nil {
		return false
	}
	return start.After(*endBound(end))
}

// endBound widens a midnight end bound to the last instant of that day.
func endBound(end *time.Time) *time.Time {
	if end == nil {
		return nil
	}
	e := *end
	if e.Hour() == 0 && e.Minute() == 0 && e.Second() == 0 && e.Nanosecond() == 0 {
		e = e.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &e
}
