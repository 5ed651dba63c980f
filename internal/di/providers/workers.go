package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/cewkb/kbsearch/internal/config"
	"github.com/cewkb/kbsearch/internal/logger"
	"github.com/cewkb/kbsearch/internal/watcher"
)

// SeedWatcherHandle wraps the seed file watcher with shutdown capability.
// Watcher is nil when watching is off.
type SeedWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SeedWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Stop()
}

// ProvideSeedWatcher reloads the catalog whenever the seed file changes.
func ProvideSeedWatcher(i do.Injector) (*SeedWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	seedFile := do.MustInvoke[*SeedFileHandle](i).File
	if !cfg.Source.WatchSeed || seedFile == nil {
		return &SeedWatcherHandle{}, nil
	}
	cat := do.MustInvoke[*CatalogHandle](i)

	w, err := watcher.New(log.Logger, watcher.Options{IgnoreHidden: true})
	if err != nil {
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := watcher.ReloadOnChange(ctx, w, seedFile, cat.Catalog, log.Logger); err != nil {
			log.Error("Seed watcher stopped", "error", err)
		}
	}()

	log.Info("Seed watcher started", "path", cfg.Source.SeedFile)

	return &SeedWatcherHandle{Watcher: w, cancel: cancel}, nil
}
