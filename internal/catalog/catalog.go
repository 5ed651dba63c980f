package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/cewkb/kbsearch/internal/browse"
	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/logger"
	"github.com/cewkb/kbsearch/internal/search"
)

// Snapshot is one immutable generation of the catalog: a collection, its
// index and derived facets.
type Snapshot struct {
	Collection   domain.Collection
	Index        *search.Index
	Facets       browse.Facets
	Tags         domain.TagIndex
	Version      uint64
	Source       string
	UsedFallback bool
	LoadedAt     time.Time
}

// Acquire takes a reference on the snapshot's index. It returns false once
// the snapshot has been retired and released by every holder.
func (s *Snapshot) Acquire() bool {
	return s.Index.Retain()
}

// Release drops a reference taken by Acquire.
func (s *Snapshot) Release() {
	_ = s.Index.Release()
}

// Options configures a Catalog.
type Options struct {
	Search search.Options
	Clock  clock.Clock
	Logger *slog.Logger
}

// Catalog owns the current snapshot. Refreshes replace it wholesale and
// notify subscribers.
type Catalog struct {
	loader *Loader
	opts   Options
	clock  clock.Clock
	logger *slog.Logger
	group  singleflight.Group

	mu      sync.RWMutex
	current *Snapshot
	version uint64
	subs    map[int]func(*Snapshot)
	nextSub int
	closed  bool
}

// New creates an empty catalog. Nothing is loaded until Refresh.
func New(loader *Loader, opts Options) *Catalog {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Search.Logger == nil {
		opts.Search.Logger = opts.Logger
	}
	return &Catalog{
		loader: loader,
		opts:   opts,
		clock:  opts.Clock,
		logger: opts.Logger,
		subs:   make(map[int]func(*Snapshot)),
	}
}

// Current returns the current snapshot, or nil before the first load.
// The caller must Acquire it before searching if it may outlive a refresh.
func (c *Catalog) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Acquire returns the current snapshot with a reference held. The release
// func must be called when done. ok is false before the first load.
func (c *Catalog) Acquire() (snap *Snapshot, release func(), ok bool) {
	for {
		snap = c.Current()
		if snap == nil {
			return nil, func() {}, false
		}
		if snap.Acquire() {
			return snap, snap.Release, true
		}
		// Retired between Current and Acquire; the replacement is already
		// published, so the next read sees it.
	}
}

// Refresh reloads the collection. Concurrent calls share one load.
//
// When every source fails and nothing has been loaded yet, an empty snapshot
// is installed so callers see "no data" rather than waiting forever. When a
// good snapshot already exists it is kept. Either way the load error is
// returned.
func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	snap, _ := v.(*Snapshot)
	return snap, err
}

func (c *Catalog) refresh(ctx context.Context) (*Snapshot, error) {
	started := c.clock.Now()
	res, loadErr := c.loader.Load(ctx)
	if loadErr != nil {
		c.logger.Error("collection unavailable", "error", loadErr)
		if cur := c.Current(); cur != nil {
			return cur, loadErr
		}
	}

	snap, err := c.Replace(ctx, res)
	if err != nil {
		return nil, err
	}
	c.logger.Info("catalog refreshed",
		"source", snap.Source,
		"articles", len(snap.Collection.Articles),
		"tags", len(snap.Collection.Tags),
		"fallback", snap.UsedFallback,
		"version", snap.Version,
		"took", c.clock.Since(started),
	)
	return snap, loadErr
}

// Replace installs res as the current snapshot, building a fresh index, and
// notifies subscribers. The previous snapshot is released once its holders
// let go.
func (c *Catalog) Replace(ctx context.Context, res LoadResult) (*Snapshot, error) {
	ix, err := search.Build(ctx, res.Collection.Articles, res.Collection.Tags, c.opts.Search)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ix.Close()
		return nil, ErrClosed
	}
	c.version++
	snap := &Snapshot{
		Collection:   res.Collection,
		Index:        ix,
		Facets:       browse.BuildFacets(res.Collection),
		Tags:         domain.IndexTags(res.Collection.Tags),
		Version:      c.version,
		Source:       res.Source,
		UsedFallback: res.UsedFallback,
		LoadedAt:     c.clock.Now(),
	}
	old := c.current
	c.current = snap
	subs := make([]func(*Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	if old != nil {
		old.Release()
	}
	return snap, nil
}

// Subscribe registers fn to run after every replacement, in the replacing
// goroutine. The returned func unregisters it.
func (c *Catalog) Subscribe(fn func(*Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Run refreshes every interval until ctx is done. A zero interval returns
// immediately.
func (c *Catalog) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil {
				c.logger.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

// Close retires the current snapshot. Later refreshes fail with ErrClosed.
func (c *Catalog) Close() error {
	c.mu.Lock()
	c.closed = true
	cur := c.current
	c.current = nil
	c.subs = map[int]func(*Snapshot){}
	c.mu.Unlock()

	if cur != nil {
		return cur.Index.Release()
	}
	return nil
}
