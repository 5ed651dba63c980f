package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/cewkb/kbsearch/internal/browse"
	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/errors"
	"github.com/cewkb/kbsearch/internal/session"
)

// Session actions accepted by PATCH.
const (
	ActionNext     = "next"
	ActionPrev     = "prev"
	ActionLoadMore = "load_more"
	ActionFlush    = "flush"
)

func (s *Server) registerSessionRoutes() {
	if s.services.Sessions == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID:   "createSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Create session",
		Description:   "Starts a stateful query session on the current catalog",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get session view",
		Tags:        []string{"Sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateSession",
		Method:      http.MethodPatch,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Update session",
		Description: "Changes query, filters, sort, mode or page in one step. Query edits are debounced " +
			"and the returned view may still be pending, unless the patch also sets page or flushes.",
		Tags: []string{"Sessions"},
	}, s.handleUpdateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/reset",
		Summary:     "Reset session filters",
		Tags:        []string{"Sessions"},
	}, s.handleResetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{id}",
		Summary:       "Delete session",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSession)

	sse.Register(s.api, huma.Operation{
		OperationID: "streamSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/events",
		Summary:     "Stream session views",
		Description: "Sends the current view, then every later one. Slow readers skip intermediate views.",
		Tags:        []string{"Sessions"},
	}, map[string]any{
		"view":  SessionView{},
		"error": StreamError{},
	}, s.handleStreamSession)
}

// === DTOs ===

// SessionView is a session's published state with articles enriched for
// display.
type SessionView struct {
	Seq      uint64          `json:"seq" doc:"Increases with every published view"`
	State    session.State   `json:"state" enum:"loading,ready,no_data,timed_out"`
	Query    string          `json:"query" doc:"Settled query the items reflect"`
	RawQuery string          `json:"raw_query" doc:"Latest keystrokes, possibly unsettled"`
	Pending  bool            `json:"pending" doc:"A debounced query has not settled yet"`
	Criteria browse.Criteria `json:"criteria"`
	Sort     string          `json:"sort"`
	Mode     string          `json:"mode"`

	Items       []dto.ArticleSummary `json:"items"`
	Total       int                  `json:"total"`
	TotalPages  int                  `json:"total_pages"`
	Page        int                  `json:"page"`
	PageSize    int                  `json:"page_size"`
	HasMore     bool                 `json:"has_more"`
	HasPrev     bool                 `json:"has_prev"`
	Suggestions []string             `json:"suggestions"`

	Tags         []browse.TagFacet      `json:"tags"`
	Platforms    []browse.PlatformFacet `json:"platforms"`
	UsedFallback bool                   `json:"used_fallback"`
	DataVersion  uint64                 `json:"data_version"`
	Error        string                 `json:"error,omitempty"`
}

// StreamError is sent on a session stream before it closes abnormally.
type StreamError struct {
	Message string `json:"message"`
}

// SessionIDInput identifies a session.
type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// SessionPatch lists the changes to apply. Absent fields are left alone.
type SessionPatch struct {
	Query      *string   `json:"query,omitempty" validate:"omitempty,max=200" doc:"Search text; debounced"`
	Tags       []string  `json:"tags,omitempty" validate:"omitempty,max=50,dive,max=64" doc:"Replaces the tag selection; [] clears it"`
	ToggleTag  string    `json:"toggle_tag,omitempty" validate:"max=64" doc:"Adds or removes one tag"`
	Platform   *string   `json:"platform,omitempty" validate:"omitempty,max=100" doc:"Selects a platform; empty clears it"`
	Start      *FlexDate `json:"start,omitempty" doc:"Earliest creation date"`
	End        *FlexDate `json:"end,omitempty" doc:"Latest creation date, inclusive"`
	ClearDates bool      `json:"clear_dates,omitempty" doc:"Removes both date bounds"`
	Sort       string    `json:"sort,omitempty" validate:"omitempty,oneof=newest oldest"`
	Mode       string    `json:"mode,omitempty" validate:"omitempty,oneof=windowed cumulative"`
	Page       *int      `json:"page,omitempty" validate:"omitempty,gte=1"`
	Action     string    `json:"action,omitempty" validate:"omitempty,oneof=next prev load_more flush"`
}

// UpdateSessionInput wraps a session patch.
type UpdateSessionInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body SessionPatch
}

// CreateSessionResponse is a new session and its first view.
type CreateSessionResponse struct {
	ID   string      `json:"id" doc:"Session ID"`
	View SessionView `json:"view"`
}

// CreateSessionOutput wraps the create response for Huma.
type CreateSessionOutput struct {
	Body CreateSessionResponse
}

// SessionViewOutput wraps a view for Huma.
type SessionViewOutput struct {
	Body SessionView
}

// === Handlers ===

func (s *Server) handleCreateSession(_ context.Context, _ *struct{}) (*CreateSessionOutput, error) {
	sess, err := s.services.Sessions.Create()
	if err != nil {
		return nil, err
	}
	return &CreateSessionOutput{Body: CreateSessionResponse{
		ID:   sess.ID(),
		View: toSessionView(sess.View()),
	}}, nil
}

func (s *Server) handleGetSession(_ context.Context, input *SessionIDInput) (*SessionViewOutput, error) {
	sess, err := s.services.Sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}
	return &SessionViewOutput{Body: toSessionView(sess.View())}, nil
}

func (s *Server) handleUpdateSession(_ context.Context, input *UpdateSessionInput) (*SessionViewOutput, error) {
	patch := input.Body
	if err := s.services.Validator.Validate(patch); err != nil {
		return nil, err
	}

	sess, err := s.services.Sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}

	// Everything that can fail is checked before anything is applied, so a
	// rejected patch leaves the session untouched.
	var order browse.SortOrder
	if patch.Sort != "" {
		if order, err = browse.ParseSortOrder(patch.Sort); err != nil {
			return nil, err
		}
	}
	var mode browse.Mode
	if patch.Mode != "" {
		if mode, err = browse.ParseMode(patch.Mode); err != nil {
			return nil, err
		}
	}
	start, end, datesChanged, err := patchDates(sess.View().Criteria, patch)
	if err != nil {
		return nil, err
	}

	change := session.Change{
		Query:     patch.Query,
		Tags:      patch.Tags,
		ToggleTag: patch.ToggleTag,
		Platform:  patch.Platform,
		SetDates:  datesChanged,
		Start:     start,
		End:       end,
		Sort:      order,
		Mode:      mode,
		Page:      patch.Page,
		Flush:     patch.Action == ActionFlush,
	}
	switch patch.Action {
	case ActionNext:
		change.Step = session.StepNext
	case ActionPrev:
		change.Step = session.StepPrev
	case ActionLoadMore:
		change.Step = session.StepLoadMore
	}
	if err := sess.Apply(change); err != nil {
		return nil, err
	}

	return &SessionViewOutput{Body: toSessionView(sess.View())}, nil
}

// patchDates resolves the date range a patch asks for. A bound the patch
// omits keeps its current value.
func patchDates(cur browse.Criteria, patch SessionPatch) (start, end *time.Time, changed bool, err error) {
	if patch.ClearDates {
		return nil, nil, true, nil
	}
	if patch.Start == nil && patch.End == nil {
		return nil, nil, false, nil
	}

	start, end = cur.Start, cur.End
	if patch.Start != nil {
		start = patch.Start.timePtr()
	}
	if patch.End != nil {
		end = patch.End.timePtr()
	}
	if browse.InvertedRange(start, end) {
		return nil, nil, false, errors.InvalidInputf("start must not be after end").
			WithDetails(map[string]string{"start": "must not be after end"})
	}
	return start, end, true, nil
}

func (s *Server) handleResetSession(_ context.Context, input *SessionIDInput) (*SessionViewOutput, error) {
	sess, err := s.services.Sessions.Get(input.ID)
	if err != nil {
		return nil, err
	}
	sess.ResetFilters()
	return &SessionViewOutput{Body: toSessionView(sess.View())}, nil
}

func (s *Server) handleDeleteSession(_ context.Context, input *SessionIDInput) (*struct{}, error) {
	if err := s.services.Sessions.Delete(input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleStreamSession(ctx context.Context, input *SessionIDInput, send sse.Sender) {
	sess, err := s.services.Sessions.Get(input.ID)
	if err != nil {
		_ = send.Data(StreamError{Message: err.Error()})
		return
	}

	views, cancel := sess.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				_ = send.Data(StreamError{Message: "session closed"})
				return
			}
			// An attached stream keeps the session alive.
			sess.Touch()
			if err := send.Data(toSessionView(v)); err != nil {
				s.logger.Debug("session stream ended", "session", sess.ID(), "error", err)
				return
			}
		}
	}
}

func toSessionView(v session.View) SessionView {
	tags := make([]domain.Tag, len(v.Tags))
	for i, f := range v.Tags {
		tags[i] = domain.Tag{ID: f.ID, Name: f.Name}
	}

	return SessionView{
		Seq:          v.Seq,
		State:        v.State,
		Query:        v.Query,
		RawQuery:     v.RawQuery,
		Pending:      v.Pending,
		Criteria:     v.Criteria,
		Sort:         string(v.Sort),
		Mode:         string(v.Mode),
		Items:        dto.NewEnricher(domain.IndexTags(tags)).Summaries(v.Items),
		Total:        v.Total,
		TotalPages:   v.TotalPages,
		Page:         v.Page,
		PageSize:     v.PageSize,
		HasMore:      v.HasMore,
		HasPrev:      v.HasPrev,
		Suggestions:  v.Suggestions,
		Tags:         v.Tags,
		Platforms:    v.Platforms,
		UsedFallback: v.UsedFallback,
		DataVersion:  v.DataVersion,
		Error:        v.Error,
	}
}
