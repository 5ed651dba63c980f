package browse

import (
	"strings"

	"github.com/cewkb/kbsearch/internal/errors"
)

// DefaultPageSize is used when a page size below 1 is requested.
const DefaultPageSize = 5

// Mode selects how a page number maps to a slice of results.
type Mode string

// Pagination modes.
const (
	// Windowed returns only the items on the requested page.
	Windowed Mode = "windowed"
	// Cumulative returns every item up to and including the requested page,
	// for "load more" lists.
	Cumulative Mode = "cumulative"
)

// ParseMode parses a pagination mode. Empty means windowed.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Windowed:
		return Windowed, nil
	case Cumulative:
		return Cumulative, nil
	default:
		return "", errors.InvalidInputf("invalid mode %q (must be windowed or cumulative)", s)
	}
}

// Page is one page of an ordered result list plus navigation metadata.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	HasMore    bool `json:"has_more"`
	HasPrev    bool `json:"has_prev"`
}

// TotalPages returns how many pages of pageSize cover total items.
func TotalPages(total, pageSize int) int {
	if total <= 0 {
		return 0
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return (total + pageSize - 1) / pageSize
}

// ClampPage bounds page to [1, max(1, totalPages)].
func ClampPage(page, totalPages int) int {
	return max(1, min(page, totalPages))
}

// Paginate slices ordered items for a 1-based page number. Page numbers
// below 1 are treated as 1. A page past the end has no items but correct
// totals.
func Paginate[T any](items []T, pageSize, page int, mode Mode) Page[T] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	page = max(page, 1)

	total := len(items)
	p := Page[T]{
		Total:      total,
		TotalPages: TotalPages(total, pageSize),
		Page:       page,
		PageSize:   pageSize,
	}
	p.HasMore = page < p.TotalPages
	p.HasPrev = page > 1 && mode != Cumulative

	start := (page - 1) * pageSize
	if mode == Cumulative {
		start = 0
	}
	end := min(page*pageSize, total)
	if start >= end {
		p.Items = []T{}
		return p
	}

	p.Items = make([]T, end-start)
	copy(p.Items, items[start:end])
	return p
}
