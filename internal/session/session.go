// Package session implements the stateful query orchestrator: one Session per
// client, holding the raw input, filters, sort and page, and publishing a
// derived View whenever any of them change.
//
// Text input is debounced. Every pipeline run is guarded by a watchdog; when
// it fires first the session reports StateTimedOut and discards the run.
package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cewkb/kbsearch/internal/browse"
	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/errors"
	"github.com/cewkb/kbsearch/internal/logger"
)

// Default timings.
const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultWatchdog = 5 * time.Second
)

// Options configures a Session.
type Options struct {
	Debounce time.Duration
	Watchdog time.Duration
	PageSize int
	Mode     browse.Mode
	Clock    clock.Clock
	Logger   *slog.Logger
}

// DefaultOptions returns the standard session options.
func DefaultOptions() Options {
	return Options{
		Debounce: DefaultDebounce,
		Watchdog: DefaultWatchdog,
		PageSize: browse.DefaultPageSize,
		Mode:     browse.Windowed,
	}
}

func (o Options) withDefaults() Options {
	if o.Watchdog <= 0 {
		o.Watchdog = DefaultWatchdog
	}
	if o.Debounce < 0 {
		o.Debounce = 0
	}
	if o.PageSize < 1 {
		o.PageSize = browse.DefaultPageSize
	}
	if o.Mode == "" {
		o.Mode = browse.Windowed
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	return o
}

// Session is a single client's query state. All methods are safe for
// concurrent use; mutations are serialized and the pipeline runs outside the
// lock.
type Session struct {
	id     string
	opts   Options
	clock  clock.Clock
	logger *slog.Logger

	mu         sync.Mutex
	data       Data
	hasData    bool
	rawQuery   string
	query      string
	criteria   browse.Criteria
	sort       browse.SortOrder
	page       int
	mode       browse.Mode
	lastActive time.Time
	closed     bool

	// gen invalidates in-flight runs and watchdogs; debounceGen invalidates
	// debounce callbacks. Both only ever increase.
	gen         uint64
	debounceGen uint64
	debounce    *clock.Timer
	watchdog    *clock.Timer
	cancel      context.CancelFunc

	view    View
	seq     uint64
	subs    map[int]chan View
	nextSub int
}

// job is one pipeline run, captured under the lock and executed outside it.
type job struct {
	gen   uint64
	ctx   context.Context
	data  Data
	query browse.Query
}

// New creates a session in StateLoading. It computes nothing until
// SetCollection supplies data.
func New(id string, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		id:     id,
		opts:   opts,
		clock:  opts.Clock,
		logger: opts.Logger.With("session", id),
		sort:   browse.SortNewest,
		page:   1,
		mode:   opts.Mode,
		subs:   make(map[int]chan View),
	}
	s.lastActive = s.clock.Now()

	s.mu.Lock()
	s.publishLocked(s.baseViewLocked(StateLoading))
	s.mu.Unlock()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LastActive returns when the session was last touched by a caller.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch marks the session active.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.clock.Now()
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetQuery records raw text input. The query settles after the debounce
// delay; each call restarts the delay. Only a settled value that differs from
// the current query triggers a run, and it resets the page to 1.
func (s *Session) SetQuery(raw string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.lastActive = s.clock.Now()
	s.rawQuery = raw
	s.stopDebounceLocked()

	if s.opts.Debounce == 0 {
		j := s.settleLocked()
		s.mu.Unlock()
		s.execute(j)
		return
	}

	dg := s.debounceGen
	s.debounce = s.clock.AfterFunc(s.opts.Debounce, func() { s.settle(dg) })
	s.republishLocked()
	s.mu.Unlock()
}

// Flush settles a pending query immediately.
func (s *Session) Flush() {
	s.mu.Lock()
	if s.closed || s.debounce == nil {
		s.mu.Unlock()
		return
	}
	s.stopDebounceLocked()
	j := s.settleLocked()
	s.mu.Unlock()
	s.execute(j)
}

func (s *Session) settle(dg uint64) {
	s.mu.Lock()
	if s.closed || dg != s.debounceGen {
		s.mu.Unlock()
		return
	}
	s.debounce = nil
	j := s.settleLocked()
	s.mu.Unlock()
	s.execute(j)
}

// settleLocked promotes the raw query. The debounce timer must already be
// stopped or fired.
func (s *Session) settleLocked() *job {
	if s.rawQuery == s.query {
		s.republishLocked()
		return nil
	}
	s.query = s.rawQuery
	s.page = 1
	return s.startLocked()
}

// SetTags replaces the tag selection.
func (s *Session) SetTags(ids []string) {
	s.update(func() bool {
		s.criteria.TagIDs = uniqueNonEmpty(ids)
		s.page = 1
		return true
	})
}

// ToggleTag adds id to the selection, or removes it if already selected.
func (s *Session) ToggleTag(id string) {
	s.update(func() bool {
		if id == "" {
			return false
		}
		s.toggleTagLocked(id)
		s.page = 1
		return true
	})
}

func (s *Session) toggleTagLocked(id string) {
	if i := slices.Index(s.criteria.TagIDs, id); i >= 0 {
		s.criteria.TagIDs = slices.Delete(slices.Clone(s.criteria.TagIDs), i, i+1)
	} else {
		s.criteria.TagIDs = append(slices.Clone(s.criteria.TagIDs), id)
	}
}

// SetPlatform selects a platform. Empty clears it.
func (s *Session) SetPlatform(platform string) {
	s.update(func() bool {
		s.criteria.Platform = platform
		s.page = 1
		return true
	})
}

// SetDateRange sets the creation date bounds. Either may be nil.
func (s *Session) SetDateRange(start, end *time.Time) error {
	if browse.InvertedRange(start, end) {
		return errors.InvalidInputf("start %s is after end %s",
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	s.update(func() bool {
		s.criteria.Start = cloneTime(start)
		s.criteria.End = cloneTime(end)
		s.page = 1
		return true
	})
	return nil
}

// SetSort changes the sort order.
func (s *Session) SetSort(order browse.SortOrder) {
	s.update(func() bool {
		s.sort = order
		s.page = 1
		return true
	})
}

// SetMode switches between windowed and cumulative pagination.
func (s *Session) SetMode(mode browse.Mode) {
	s.update(func() bool {
		if mode == s.mode {
			return false
		}
		s.mode = mode
		s.page = 1
		return true
	})
}

// SetPage jumps to page n, clamped to the known page range.
func (s *Session) SetPage(n int) {
	s.update(func() bool { return s.movePageLocked(n) })
}

// NextPage advances one page if there is one.
func (s *Session) NextPage() {
	s.update(func() bool { return s.movePageLocked(s.page + 1) })
}

// PrevPage goes back one page if there is one.
func (s *Session) PrevPage() {
	s.update(func() bool { return s.movePageLocked(s.page - 1) })
}

// LoadMore extends a cumulative list by one page.
func (s *Session) LoadMore() {
	s.update(func() bool { return s.movePageLocked(s.page + 1) })
}

func (s *Session) movePageLocked(n int) bool {
	n = max(n, 1)
	if s.view.State == StateReady || s.view.State == StateNoData {
		n = browse.ClampPage(n, s.view.TotalPages)
	}
	if n == s.page {
		return false
	}
	s.page = n
	return true
}

// ResetFilters clears the query, tags, platform, dates, sort and page in one
// step and recomputes once.
func (s *Session) ResetFilters() {
	s.update(func() bool {
		s.stopDebounceLocked()
		s.rawQuery = ""
		s.query = ""
		s.criteria = browse.Criteria{}
		s.sort = browse.SortNewest
		s.page = 1
		return true
	})
}

// Step moves the page relative to where a Change leaves it.
type Step string

// Page steps.
const (
	StepNext     Step = "next"
	StepPrev     Step = "prev"
	StepLoadMore Step = "load_more"
)

// Change is a batch of edits applied by Apply. Zero fields are left alone.
type Change struct {
	Query      *string
	Tags       []string // nil keeps the selection, empty clears it
	ToggleTag  string
	Platform   *string
	SetDates   bool // apply Start and End, either of which may be nil
	Start, End *time.Time
	Sort       browse.SortOrder
	Mode       browse.Mode
	Page       *int
	Step       Step
	Flush      bool
}

// Apply performs every edit in c as one step: subscribers see a single new
// view and the pipeline runs at most once. Filter edits reset the page to 1
// before Page and Step apply, so those address the new result set. A Query
// sent together with a Page settles at once instead of waiting out the
// debounce, so the page is not lost to the settle. An inverted date range
// rejects the whole change.
func (s *Session) Apply(c Change) error {
	if c.SetDates && browse.InvertedRange(c.Start, c.End) {
		return errors.InvalidInputf("start %s is after end %s",
			c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.lastActive = s.clock.Now()

	run := false
	if c.Tags != nil {
		s.criteria.TagIDs = uniqueNonEmpty(c.Tags)
		run = true
	}
	if c.ToggleTag != "" {
		s.toggleTagLocked(c.ToggleTag)
		run = true
	}
	if c.Platform != nil {
		s.criteria.Platform = *c.Platform
		run = true
	}
	if c.SetDates {
		s.criteria.Start = cloneTime(c.Start)
		s.criteria.End = cloneTime(c.End)
		run = true
	}
	if c.Sort != "" {
		s.sort = c.Sort
		run = true
	}
	if c.Mode != "" && c.Mode != s.mode {
		s.mode = c.Mode
		run = true
	}
	if run {
		s.page = 1
	}

	settle := false
	if c.Query != nil {
		s.rawQuery = *c.Query
		s.stopDebounceLocked()
		if s.opts.Debounce == 0 || c.Page != nil || c.Flush {
			settle = true
		} else {
			dg := s.debounceGen
			s.debounce = s.clock.AfterFunc(s.opts.Debounce, func() { s.settle(dg) })
		}
	}
	if c.Flush && s.debounce != nil {
		s.stopDebounceLocked()
		settle = true
	}
	if settle && s.rawQuery != s.query {
		s.query = s.rawQuery
		s.page = 1
		run = true
	}

	target, paged := s.page, false
	if c.Page != nil {
		target, paged = *c.Page, true
	}
	switch c.Step {
	case StepNext, StepLoadMore:
		target, paged = target+1, true
	case StepPrev:
		target, paged = target-1, true
	}
	if paged {
		if run {
			// The run clamps against the fresh totals.
			s.page = max(target, 1)
		} else if s.movePageLocked(target) {
			run = true
		}
	}

	var j *job
	if run {
		j = s.startLocked()
	} else {
		s.republishLocked()
	}
	s.mu.Unlock()
	s.execute(j)
	return nil
}

// SetCollection swaps in new data. A pending query settles immediately and
// any in-flight run is abandoned. Data whose version is not newer than the
// current one is released and ignored; version 0 always applies.
func (s *Session) SetCollection(d Data) {
	s.mu.Lock()
	if s.closed || (s.hasData && d.Version != 0 && d.Version <= s.data.Version) {
		s.mu.Unlock()
		d.Release()
		return
	}

	old, hadData := s.data, s.hasData
	s.data, s.hasData = d, true

	if s.debounce != nil {
		s.stopDebounceLocked()
		if s.rawQuery != s.query {
			s.query = s.rawQuery
			s.page = 1
		}
	}
	j := s.startLocked()
	s.mu.Unlock()

	if hadData {
		old.Release()
	}
	s.execute(j)
}

// Close stops all timers, ends subscriptions and releases the data.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.stopDebounceLocked()
	s.stopWatchdogLocked()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	d, hadData := s.data, s.hasData
	s.data, s.hasData = Data{}, false
	s.mu.Unlock()

	if hadData {
		d.Release()
	}
}

// Subscribe returns a stream of views starting with the current one. The
// channel holds only the latest view; a slow reader skips intermediate ones.
// The channel is closed by cancel or Close.
func (s *Session) Subscribe() (<-chan View, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan View, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- s.view
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
}

func (s *Session) update(fn func() bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.lastActive = s.clock.Now()
	var j *job
	if fn() {
		j = s.startLocked()
	} else {
		s.republishLocked()
	}
	s.mu.Unlock()
	s.execute(j)
}

// startLocked invalidates any in-flight run, arms a fresh watchdog and
// captures the inputs for a new run. It returns nil when there is nothing to
// run yet.
func (s *Session) startLocked() *job {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stopWatchdogLocked()

	if !s.hasData {
		s.publishLocked(s.baseViewLocked(StateLoading))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.gen
	s.watchdog = s.clock.AfterFunc(s.opts.Watchdog, func() { s.expire(gen) })

	return &job{
		gen:  gen,
		ctx:  ctx,
		data: s.data,
		query: browse.Query{
			Text:     s.query,
			Criteria: s.criteria.Clone(),
			Sort:     s.sort,
			Page:     s.page,
			PageSize: s.opts.PageSize,
			Mode:     s.mode,
		},
	}
}

func (s *Session) execute(j *job) {
	if j == nil {
		return
	}
	if r, ok := j.data.Searcher.(retainer); ok {
		if !r.Retain() {
			return // retired; a newer collection is on its way
		}
		defer func() { _ = r.Release() }()
	}

	started := s.clock.Now()
	res, err := browse.Run(j.ctx, j.data.Searcher, j.data.Articles, j.query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || j.gen != s.gen {
		return // superseded or timed out
	}
	s.stopWatchdogLocked()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if err != nil {
		s.logger.Warn("query failed", "query", j.query.Text, "error", err)
		v := s.baseViewLocked(StateNoData)
		v.Error = err.Error()
		s.publishLocked(v)
		return
	}

	if clamped := browse.ClampPage(j.query.Page, res.Page.TotalPages); clamped != j.query.Page {
		s.page = clamped
		res.Page = browse.Paginate(res.Ordered, j.query.PageSize, clamped, j.query.Mode)
	}

	state := StateReady
	if len(j.data.Articles) == 0 {
		state = StateNoData
	}
	v := s.baseViewLocked(state)
	v.Items = res.Page.Items
	v.Total = res.Page.Total
	v.TotalPages = res.Page.TotalPages
	v.Page = res.Page.Page
	v.HasMore = res.Page.HasMore
	v.HasPrev = res.Page.HasPrev
	v.Suggestions = res.Suggestions
	s.publishLocked(v)

	s.logger.Debug("query completed",
		"query", j.query.Text,
		"total", res.Page.Total,
		"page", res.Page.Page,
		"took", s.clock.Since(started),
	)
}

// expire fires when a run exceeds the watchdog budget.
func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.gen++
	s.watchdog = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.logger.Warn("search timed out", "query", s.query, "budget", s.opts.Watchdog)

	v := s.baseViewLocked(StateTimedOut)
	v.Error = errors.SearchTimeoutf("search exceeded %s", s.opts.Watchdog).Error()
	s.publishLocked(v)
}

func (s *Session) stopDebounceLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.debounceGen++
}

func (s *Session) stopWatchdogLocked() {
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

func (s *Session) baseViewLocked(state State) View {
	v := View{
		State:        state,
		Query:        s.query,
		RawQuery:     s.rawQuery,
		Pending:      s.debounce != nil,
		Criteria:     s.criteria.Clone(),
		Sort:         s.sort,
		Mode:         s.mode,
		Page:         s.page,
		PageSize:     s.opts.PageSize,
		Items:        []domain.Article{},
		Suggestions:  []string{},
		Tags:         []browse.TagFacet{},
		Platforms:    []browse.PlatformFacet{},
		UsedFallback: s.data.UsedFallback,
		DataVersion:  s.data.Version,
	}
	if s.data.Facets.Tags != nil {
		v.Tags = s.data.Facets.Tags
	}
	if s.data.Facets.Platforms != nil {
		v.Platforms = s.data.Facets.Platforms
	}
	return v
}

// republishLocked refreshes the input fields of the current view without
// touching its results.
func (s *Session) republishLocked() {
	v := s.view
	base := s.baseViewLocked(v.State)
	v.Query, v.RawQuery, v.Pending = base.Query, base.RawQuery, base.Pending
	v.Criteria, v.Sort, v.Mode = base.Criteria, base.Sort, base.Mode
	s.publishLocked(v)
}

func (s *Session) publishLocked(v View) {
	s.seq++
	v.Seq = s.seq
	s.view = v
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

func uniqueNonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
