package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/cewkb/kbsearch/internal/catalog"
	"github.com/cewkb/kbsearch/internal/config"
	"github.com/cewkb/kbsearch/internal/logger"
	"github.com/cewkb/kbsearch/internal/search"
	"github.com/cewkb/kbsearch/internal/session"
)

// CatalogHandle wraps the catalog with its periodic refresh loop.
type CatalogHandle struct {
	*catalog.Catalog
	unfollow func()
	cancel   context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *CatalogHandle) Shutdown() error {
	h.cancel()
	h.unfollow()
	return h.Close()
}

// ProvideCatalog provides the catalog, loads it once, and starts the refresh
// loop when an interval is configured. A failed first load is not fatal: the
// catalog serves whatever fallback or empty collection it could get.
func ProvideCatalog(i do.Injector) (*CatalogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	loader := do.MustInvoke[*catalog.Loader](i)
	events := do.MustInvoke[*SSEManagerHandle](i)

	cat := catalog.New(loader, catalog.Options{
		Search: search.Options{
			Fuzziness:      cfg.Search.Fuzziness,
			MinQueryLength: cfg.Search.MinQueryLength,
		},
		Logger: log.Logger,
	})
	unfollow := events.Follow(cat)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := cat.Refresh(ctx); err != nil {
		log.Warn("Initial catalog load degraded", "error", err)
	}

	if cfg.Search.RefreshInterval > 0 {
		go cat.Run(ctx, cfg.Search.RefreshInterval)
		log.Info("Periodic catalog refresh started", "interval", cfg.Search.RefreshInterval)
	}

	return &CatalogHandle{Catalog: cat, unfollow: unfollow, cancel: cancel}, nil
}

// SessionRegistryHandle wraps the session registry with its sweep loop.
type SessionRegistryHandle struct {
	*session.Registry
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SessionRegistryHandle) Shutdown() error {
	h.cancel()
	h.Close()
	return nil
}

// ProvideSessionRegistry provides the query session registry and starts
// expiring idle sessions.
func ProvideSessionRegistry(i do.Injector) (*SessionRegistryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*CatalogHandle](i)

	opts := session.DefaultOptions()
	opts.Debounce = cfg.Search.Debounce
	opts.Watchdog = cfg.Search.Watchdog
	opts.PageSize = cfg.Search.PageSize
	opts.Logger = log.Logger

	reg := session.NewRegistry(cat.Catalog, opts, cfg.Sessions.IdleTTL)

	ctx, cancel := context.WithCancel(context.Background())
	go reg.Run(ctx, 0)

	log.Info("Session registry started", "idle_ttl", cfg.Sessions.IdleTTL)
	return &SessionRegistryHandle{Registry: reg, cancel: cancel}, nil
}
