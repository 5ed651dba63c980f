package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cewkb/kbsearch/internal/catalog"
	"github.com/cewkb/kbsearch/internal/errors"
	"github.com/cewkb/kbsearch/internal/id"
)

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = 30 * time.Minute

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.NotFound("session not found")

// Provider supplies catalog snapshots. *catalog.Catalog implements it.
type Provider interface {
	Current() *catalog.Snapshot
	Subscribe(fn func(*catalog.Snapshot)) (unsubscribe func())
}

// Registry owns the live sessions and keeps them on the latest snapshot.
type Registry struct {
	provider    Provider
	opts        Options
	ttl         time.Duration
	clock       clock.Clock
	logger      *slog.Logger
	unsubscribe func()

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry creates a registry fed by provider. A ttl of zero uses
// DefaultIdleTTL.
func NewRegistry(provider Provider, opts Options, ttl time.Duration) *Registry {
	opts = opts.withDefaults()
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	r := &Registry{
		provider: provider,
		opts:     opts,
		ttl:      ttl,
		clock:    opts.Clock,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
	}
	r.unsubscribe = provider.Subscribe(r.broadcast)
	return r
}

// Create starts a session on the current snapshot, if any.
func (r *Registry) Create() (*Session, error) {
	sid, err := id.Generate("ses")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create session")
	}
	s := New(sid, r.opts)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.Close()
		return nil, errors.Unavailable("session registry closed")
	}
	r.sessions[sid] = s
	r.mu.Unlock()

	// Registered first so a concurrent replacement cannot be missed; the
	// session ignores whichever copy arrives second.
	if d, ok := FromSnapshot(r.provider.Current()); ok {
		s.SetCollection(d)
	}
	r.logger.Debug("session created", "session", sid)
	return s, nil
}

// Get returns a live session and marks it active.
func (r *Registry) Get(sid string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Touch()
	return s, nil
}

// Delete closes and forgets a session.
func (r *Registry) Delete(sid string) error {
	r.mu.Lock()
	s, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle longer than the TTL and returns how many.
func (r *Registry) Sweep() int {
	cutoff := r.clock.Now().Add(-r.ttl)

	var expired []*Session
	r.mu.Lock()
	for sid, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, sid)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl / 2
	}
	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close closes every session and stops following the provider.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	r.unsubscribe()
	for _, s := range sessions {
		s.Close()
	}
}

func (r *Registry) broadcast(snap *catalog.Snapshot) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		d, ok := FromSnapshot(snap)
		if !ok {
			return
		}
		s.SetCollection(d)
	}
}
