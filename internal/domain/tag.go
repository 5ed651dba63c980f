package domain

import (
	"slices"
	"strings"
)

// Tag is a label articles reference by ID. Names are unique by convention only.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TagIndex maps tag IDs to tags.
type TagIndex map[string]Tag

// IndexTags builds a lookup from tag ID to tag. Later duplicates win.
func IndexTags(tags []Tag) TagIndex {
	idx := make(TagIndex, len(tags))
	for _, t := range tags {
		idx[t.ID] = t
	}
	return idx
}

// Names resolves ids to display names in input order. IDs with no matching
// tag are dropped.
func (idx TagIndex) Names(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if t, ok := idx[id]; ok {
			names = append(names, t.Name)
		}
	}
	return names
}

// Resolve is like Names but returns the tags themselves.
func (idx TagIndex) Resolve(ids []string) []Tag {
	out := make([]Tag, 0, len(ids))
	for _, id := range ids {
		if t, ok := idx[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ResolveTagNames resolves ids against tags, dropping dangling references.
func ResolveTagNames(ids []string, tags []Tag) []string {
	return IndexTags(tags).Names(ids)
}

// SortTagsByName orders tags case-insensitively by name, then by ID.
func SortTagsByName(tags []Tag) {
	slices.SortStableFunc(tags, func(a, b Tag) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
