package watcher

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/cewkb/kbsearch/internal/catalog"
)

// Target is the catalog a seed reload updates. *catalog.Catalog implements it.
type Target interface {
	Refresh(ctx context.Context) (*catalog.Snapshot, error)
	Replace(ctx context.Context, res catalog.LoadResult) (*catalog.Snapshot, error)
}

// SeedSource is a collection source backed by a single file. *seed.File
// implements it.
type SeedSource interface {
	catalog.Source
	Path() string
}

// ReloadOnChange reloads target whenever the seed file settles after being
// added or modified. Removals are ignored: the catalog keeps its current
// snapshot. It blocks until ctx is done or the watcher stops.
func ReloadOnChange(ctx context.Context, w *Watcher, seed SeedSource, target Target, log *slog.Logger) error {
	path, err := filepath.Abs(filepath.Clean(seed.Path()))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		return err
	}

	go w.Start(ctx) //nolint:errcheck // Start only returns nil

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			log.Warn("seed watcher error", "error", err)
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if ev.Path != path || ev.Type == EventRemoved {
				continue
			}
			log.Info("seed file changed, reloading catalog", "path", ev.Path, "change", ev.Type.String())
			snap, err := ReloadSeed(ctx, seed, target)
			if err != nil {
				log.Warn("catalog reload failed", "error", err)
				continue
			}
			log.Info("catalog reloaded", "source", snap.Source, "articles", len(snap.Collection.Articles))
		}
	}
}

// ReloadSeed brings an edited seed file into target. The full source chain
// runs first, so a healthy primary keeps precedence over the seed. When the
// chain settles on anything other than the primary or the seed itself, such
// as a cached snapshot, the seed is loaded directly and installed as fallback
// data, since it is the newer of the two.
func ReloadSeed(ctx context.Context, seed SeedSource, target Target) (*catalog.Snapshot, error) {
	snap, err := target.Refresh(ctx)
	if err == nil && snap != nil && (!snap.UsedFallback || snap.Source == seed.Name()) {
		return snap, nil
	}

	col, loadErr := seed.Load(ctx)
	if loadErr != nil {
		if err != nil {
			return snap, err
		}
		return snap, loadErr
	}
	return target.Replace(ctx, catalog.LoadResult{
		Collection:   col,
		Source:       seed.Name(),
		UsedFallback: true,
	})
}
