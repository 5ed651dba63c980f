package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/cewkb/kbsearch/internal/config"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/logger"
	"github.com/cewkb/kbsearch/internal/sse"
	"github.com/cewkb/kbsearch/internal/store"
	"github.com/cewkb/kbsearch/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the catalog event manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// SnapshotStoreHandle wraps the badger snapshot cache. Store is nil when the
// cache is disabled.
type SnapshotStoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *SnapshotStoreHandle) Shutdown() error {
	if h.Store == nil {
		return nil
	}
	return h.Close()
}

// ProvideSnapshotStore provides the last-good-collection cache.
func ProvideSnapshotStore(i do.Injector) (*SnapshotStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Cache.Enabled {
		log.Info("Snapshot cache disabled")
		return &SnapshotStoreHandle{}, nil
	}

	db, err := store.Open(cfg.Cache.Path, log.Logger)
	if err != nil {
		return nil, err
	}
	return &SnapshotStoreHandle{Store: db}, nil
}

// SQLStoreHandle wraps the SQL replica. Store is nil unless the source is sql.
type SQLStoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *SQLStoreHandle) Shutdown() error {
	if h.Store == nil {
		return nil
	}
	return h.Close()
}

// ProvideSQLStore provides the SQL replica source.
func ProvideSQLStore(i do.Injector) (*SQLStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Source.Kind != config.SourceSQL {
		return &SQLStoreHandle{}, nil
	}

	log := do.MustInvoke[*logger.Logger](i)
	policy, err := mappingPolicy(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.Source.SQLDriver, cfg.Source.SQLDSN, sqlite.Options{
		Policy: policy,
		Mapper: do.MustInvoke[*dto.Mapper](i),
		Logger: log.Logger,
	})
	if err != nil {
		return nil, err
	}

	log.Info("SQL replica opened", "driver", cfg.Source.SQLDriver)
	return &SQLStoreHandle{Store: db}, nil
}
