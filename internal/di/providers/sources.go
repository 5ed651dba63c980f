package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/cewkb/kbsearch/internal/backend"
	"github.com/cewkb/kbsearch/internal/catalog"
	"github.com/cewkb/kbsearch/internal/config"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/logger"
	"github.com/cewkb/kbsearch/internal/seed"
)

// BackendClientHandle wraps the REST client. Client is nil unless the
// source is http.
type BackendClientHandle struct {
	*backend.Client
}

// Shutdown implements do.Shutdownable.
func (h *BackendClientHandle) Shutdown() error {
	if h.Client != nil {
		h.Close()
	}
	return nil
}

// ProvideBackendClient provides the knowledge backend client.
func ProvideBackendClient(i do.Injector) (*BackendClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Source.Kind != config.SourceHTTP {
		return &BackendClientHandle{}, nil
	}

	log := do.MustInvoke[*logger.Logger](i)
	policy, err := mappingPolicy(cfg)
	if err != nil {
		return nil, err
	}

	client, err := backend.New(backend.Config{
		BaseURL:           cfg.Backend.BaseURL,
		Token:             cfg.Backend.Token,
		Timeout:           cfg.Backend.Timeout,
		RequestsPerSecond: float64(cfg.Backend.RequestsPerSecond),
		Policy:            policy,
	}, do.MustInvoke[*dto.Mapper](i), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Backend client ready", "url", cfg.Backend.BaseURL, "policy", policy)
	return &BackendClientHandle{Client: client}, nil
}

// SeedFileHandle wraps the seed file source. File is nil when no seed file
// is configured.
type SeedFileHandle struct {
	*seed.File
}

// ProvideSeedFile provides the seed file source.
func ProvideSeedFile(i do.Injector) (*SeedFileHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Source.SeedFile == "" {
		return &SeedFileHandle{}, nil
	}

	policy, err := mappingPolicy(cfg)
	if err != nil {
		return nil, err
	}
	log := do.MustInvoke[*logger.Logger](i)
	return &SeedFileHandle{File: seed.NewFile(cfg.Source.SeedFile, do.MustInvoke[*dto.Mapper](i), policy, log.Logger)}, nil
}

// ProvideLoader assembles the source chain: the configured primary, then the
// snapshot cache, then the seed file. Successful primary loads are written
// back to the cache.
func ProvideLoader(i do.Injector) (*catalog.Loader, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	seedFile := do.MustInvoke[*SeedFileHandle](i).File
	cache := do.MustInvoke[*SnapshotStoreHandle](i)

	var primary catalog.Source
	switch cfg.Source.Kind {
	case config.SourceHTTP:
		primary = do.MustInvoke[*BackendClientHandle](i).Client
	case config.SourceSQL:
		primary = do.MustInvoke[*SQLStoreHandle](i).Store
	case config.SourceFile:
		if seedFile == nil {
			return nil, fmt.Errorf("source %q needs a seed file", cfg.Source.Kind)
		}
		primary = seedFile
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source.Kind)
	}

	opts := []catalog.LoaderOption{catalog.WithLogger(log.Logger)}
	var fallbacks []catalog.Source
	if cache.Store != nil {
		fallbacks = append(fallbacks, cache.Store)
		opts = append(opts, catalog.WithSink(cache.Store))
	}
	if seedFile != nil && cfg.Source.Kind != config.SourceFile {
		fallbacks = append(fallbacks, seedFile)
	}
	opts = append(opts, catalog.WithFallbacks(fallbacks...))

	log.Info("Collection sources configured", "primary", primary.Name(), "fallbacks", len(fallbacks))
	return catalog.NewLoader(primary, opts...), nil
}
