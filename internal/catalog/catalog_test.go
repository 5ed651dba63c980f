package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cewkb/kbsearch/internal/domain"
	domainerrors "github.com/cewkb/kbsearch/internal/errors"
	"github.com/cewkb/kbsearch/internal/search"
)

type fakeSource struct {
	name  string
	col   domain.Collection
	err   error
	calls atomic.Int32
	gate  chan struct{} // when set, Load blocks until closed
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Load(ctx context.Context) (domain.Collection, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return domain.Collection{}, ctx.Err()
		}
	}
	return f.col, f.err
}

type fakeSink struct {
	mu    sync.Mutex
	saved []domain.Collection
}

func (f *fakeSink) Save(_ context.Context, col domain.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, col)
	return nil
}

func collection(titles ...string) domain.Collection {
	col := domain.Collection{Tags: []domain.Tag{{ID: "t1", Name: "General"}}}
	for i, title := range titles {
		col.Articles = append(col.Articles, domain.Article{
			ID:          string(rune('a' + i)),
			Title:       title,
			DateCreated: "2024-01-01",
			Tags:        []string{"t1"},
		})
	}
	return col
}

func newCatalog(loader *Loader) *Catalog {
	return New(loader, Options{Search: search.DefaultOptions(), Clock: clock.NewMock()})
}

func TestLoader_PrimarySuccessIsSaved(t *testing.T) {
	primary := &fakeSource{name: "backend", col: collection("VPN setup")}
	seed := &fakeSource{name: "seed", col: collection("Seed")}
	sink := &fakeSink{}

	res, err := NewLoader(primary, WithFallbacks(seed), WithSink(sink)).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "backend", res.Source)
	assert.False(t, res.UsedFallback)
	assert.Len(t, sink.saved, 1)
	assert.Zero(t, seed.calls.Load())
}

func TestLoader_FallsBackInOrder(t *testing.T) {
	primary := &fakeSource{name: "backend", err: errors.New("connection refused")}
	cache := &fakeSource{name: "snapshot", err: errors.New("empty cache")}
	seed := &fakeSource{name: "seed", col: collection("Seed article")}
	sink := &fakeSink{}

	res, err := NewLoader(primary, WithFallbacks(cache, nil, seed), WithSink(sink)).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "seed", res.Source)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, "Seed article", res.Collection.Articles[0].Title)
	assert.Empty(t, sink.saved, "fallback data is never snapshotted")
}

func TestLoader_AllSourcesFail(t *testing.T) {
	refused := errors.New("connection refused")
	primary := &fakeSource{name: "backend", err: refused}
	seed := &fakeSource{name: "seed", err: errors.New("no such file")}

	res, err := NewLoader(primary, WithFallbacks(seed)).Load(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrUnavailable)
	assert.ErrorIs(t, err, refused)
	assert.True(t, res.UsedFallback)
	assert.True(t, res.Collection.Empty())
}

func TestCatalog_RefreshInstallsSnapshot(t *testing.T) {
	cat := newCatalog(NewLoader(&fakeSource{name: "backend", col: collection("Database Migration Guide", "Login Flow")}))
	defer cat.Close()

	assert.Nil(t, cat.Current())

	var notified []uint64
	cat.Subscribe(func(s *Snapshot) { notified = append(notified, s.Version) })

	snap, err := cat.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, "backend", snap.Source)
	assert.False(t, snap.UsedFallback)
	assert.Equal(t, 2, snap.Index.Len())
	assert.Equal(t, []uint64{1}, notified)
	assert.Same(t, snap, cat.Current())
	require.Len(t, snap.Facets.Tags, 1)
	assert.Equal(t, 2, snap.Facets.Tags[0].Count)

	hits, err := snap.Index.Search(context.Background(), "databse")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Database Migration Guide", hits[0].Article.Title)
}

func TestCatalog_FirstLoadFailureInstallsEmpty(t *testing.T) {
	cat := newCatalog(NewLoader(&fakeSource{name: "backend", err: errors.New("down")}))
	defer cat.Close()

	snap, err := cat.Refresh(context.Background())

	assert.ErrorIs(t, err, domainerrors.ErrUnavailable)
	require.NotNil(t, snap)
	assert.True(t, snap.Collection.Empty())
	assert.True(t, snap.UsedFallback)
	assert.Same(t, snap, cat.Current())
}

func TestCatalog_LaterFailureKeepsCurrent(t *testing.T) {
	src := &fakeSource{name: "backend", col: collection("Keep me")}
	cat := newCatalog(NewLoader(src))
	defer cat.Close()

	good, err := cat.Refresh(context.Background())
	require.NoError(t, err)

	src.err = errors.New("down")
	snap, err := cat.Refresh(context.Background())

	assert.Error(t, err)
	assert.Same(t, good, snap)
	assert.Same(t, good, cat.Current())
}

func TestCatalog_ConcurrentRefreshSharesOneLoad(t *testing.T) {
	src := &fakeSource{name: "backend", col: collection("Shared"), gate: make(chan struct{})}
	cat := newCatalog(NewLoader(src))
	defer cat.Close()

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 4)
	for i := range snaps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps[i], _ = cat.Refresh(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, s := range snaps {
		assert.Same(t, snaps[0], s)
	}
}

func TestCatalog_ReplaceRetiresOldSnapshot(t *testing.T) {
	cat := newCatalog(NewLoader(nil))
	defer cat.Close()

	first, err := cat.Replace(context.Background(), LoadResult{Collection: collection("First edition"), Source: "test"})
	require.NoError(t, err)
	held, release, ok := cat.Acquire()
	require.True(t, ok)
	require.Same(t, first, held)

	second, err := cat.Replace(context.Background(), LoadResult{Collection: collection("Second edition"), Source: "test"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Version)

	// Still held, so still searchable.
	hits, err := held.Index.Search(context.Background(), "first")
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	release()
	_, err = held.Index.Search(context.Background(), "first")
	assert.ErrorIs(t, err, search.ErrIndexClosed)
	assert.False(t, first.Acquire())

	cur, release2, ok := cat.Acquire()
	require.True(t, ok)
	defer release2()
	assert.Same(t, second, cur)
}

func TestCatalog_AcquireBeforeLoad(t *testing.T) {
	cat := newCatalog(NewLoader(nil))
	snap, release, ok := cat.Acquire()
	assert.False(t, ok)
	assert.Nil(t, snap)
	release()
}

func TestCatalog_Unsubscribe(t *testing.T) {
	cat := newCatalog(NewLoader(nil))
	defer cat.Close()

	calls := 0
	unsubscribe := cat.Subscribe(func(*Snapshot) { calls++ })
	_, err := cat.Replace(context.Background(), LoadResult{Collection: collection("a")})
	require.NoError(t, err)
	unsubscribe()
	_, err = cat.Replace(context.Background(), LoadResult{Collection: collection("b")})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestCatalog_Close(t *testing.T) {
	cat := newCatalog(NewLoader(&fakeSource{name: "backend", col: collection("x")}))
	_, err := cat.Refresh(context.Background())
	require.NoError(t, err)

	require.NoError(t, cat.Close())
	assert.Nil(t, cat.Current())

	_, err = cat.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCatalog_RunRefreshesOnTick(t *testing.T) {
	src := &fakeSource{name: "backend", col: collection("x")}
	mock := clock.NewMock()
	cat := New(NewLoader(src), Options{Clock: mock})
	defer cat.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cat.Run(ctx, time.Minute)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mock.Add(time.Minute)
		return src.calls.Load() >= 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.GreaterOrEqual(t, cat.Current().Version, uint64(2))
}
