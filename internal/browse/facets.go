package browse

import (
	"cmp"
	"slices"
	"strings"

	"github.com/cewkb/kbsearch/internal/domain"
)

// TagFacet is a tag that appears on at least one article.
type TagFacet struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PlatformFacet is a platform value that appears on at least one article.
type PlatformFacet struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Facets are the filter choices a collection offers.
type Facets struct {
	Tags      []TagFacet      `json:"tags"`
	Platforms []PlatformFacet `json:"platforms"`
}

// BuildFacets derives filter choices from a collection. Tags are those
// referenced by some article and known to the tag set, ordered by name
// case-insensitively. Platforms are the distinct non-empty values, in
// alphabetical order.
func BuildFacets(col domain.Collection) Facets {
	tagIdx := domain.IndexTags(col.Tags)
	tagCounts := make(map[string]int)
	platformCounts := make(map[string]int)

	for _, a := range col.Articles {
		seen := make(map[string]struct{}, len(a.Tags))
		for _, id := range a.Tags {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := tagIdx[id]; ok {
				tagCounts[id]++
			}
		}
		if p := strings.TrimSpace(a.Platform); p != "" {
			platformCounts[p]++
		}
	}

	f := Facets{
		Tags:      make([]TagFacet, 0, len(tagCounts)),
		Platforms: make([]PlatformFacet, 0, len(platformCounts)),
	}
	for id, n := range tagCounts {
		f.Tags = append(f.Tags, TagFacet{ID: id, Name: tagIdx[id].Name, Count: n})
	}
	slices.SortFunc(f.Tags, func(a, b TagFacet) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			strings.Compare(a.ID, b.ID),
		)
	})

	for name, n := range platformCounts {
		f.Platforms = append(f.Platforms, PlatformFacet{Name: name, Count: n})
	}
	slices.SortFunc(f.Platforms, func(a, b PlatformFacet) int {
		return strings.Compare(a.Name, b.Name)
	})
	return f
}
