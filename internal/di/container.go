// Package di provides dependency injection configuration for the kbsearch service.
package di

import (
	"github.com/samber/do/v2"

	"github.com/cewkb/kbsearch/internal/catalog"
	"github.com/cewkb/kbsearch/internal/config"
	"github.com/cewkb/kbsearch/internal/di/providers"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/logger"
	"github.com/cewkb/kbsearch/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideMapper)
	do.Provide(injector, providers.ProvideSSEManager)

	// Collection sources
	do.Provide(injector, providers.ProvideSnapshotStore)
	do.Provide(injector, providers.ProvideSQLStore)
	do.Provide(injector, providers.ProvideBackendClient)
	do.Provide(injector, providers.ProvideSeedFile)
	do.Provide(injector, providers.ProvideLoader)

	// Search layer
	do.Provide(injector, providers.ProvideCatalog)
	do.Provide(injector, providers.ProvideSessionRegistry)

	// Workers
	do.Provide(injector, providers.ProvideSeedWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. The first catalog load happens here,
// before the HTTP server starts accepting requests.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*dto.Mapper](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	if _, err := do.Invoke[*catalog.Loader](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.CatalogHandle](injector)
	_ = do.MustInvoke[*providers.SessionRegistryHandle](injector)

	// Workers
	if _, err := do.Invoke[*providers.SeedWatcherHandle](injector); err != nil {
		return err
	}

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
