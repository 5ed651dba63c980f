package session

import (
	"github.com/cewkb/kbsearch/internal/browse"
	"github.com/cewkb/kbsearch/internal/domain"
)

// State is the lifecycle state of a session's view.
type State string

// View states.
const (
	// StateLoading means no collection has arrived yet.
	StateLoading State = "loading"
	// StateReady means Items reflect the current criteria.
	StateReady State = "ready"
	// StateNoData means the collection is empty or unavailable.
	StateNoData State = "no_data"
	// StateTimedOut means the last search exceeded the watchdog budget.
	StateTimedOut State = "timed_out"
)

// View is the derived, publishable state of a session.
type View struct {
	Seq   uint64 `json:"seq"`
	State State  `json:"state"`

	Query    string           `json:"query"`
	RawQuery string           `json:"raw_query"`
	Pending  bool             `json:"pending"`
	Criteria browse.Criteria  `json:"criteria"`
	Sort     browse.SortOrder `json:"sort"`
	Mode     browse.Mode      `json:"mode"`

	Items       []domain.Article `json:"items"`
	Total       int              `json:"total"`
	TotalPages  int              `json:"total_pages"`
	Page        int              `json:"page"`
	PageSize    int              `json:"page_size"`
	HasMore     bool             `json:"has_more"`
	HasPrev     bool             `json:"has_prev"`
	Suggestions []string         `json:"suggestions"`

	Tags         []browse.TagFacet      `json:"tags"`
	Platforms    []browse.PlatformFacet `json:"platforms"`
	UsedFallback bool                   `json:"used_fallback"`
	DataVersion  uint64                 `json:"data_version"`

	// Error is set when the last run failed for a reason other than the
	// watchdog.
	Error string `json:"error,omitempty"`
}
