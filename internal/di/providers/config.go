// Package providers contains dependency injection providers for the kbsearch service.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/cewkb/kbsearch/internal/config"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/logger"
	"github.com/cewkb/kbsearch/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting kbsearch",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"source", cfg.Source.Kind,
		"cache", cfg.Cache.Enabled,
	)

	return log, nil
}

// ProvideValidator provides the shared struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideMapper provides the backend record mapper.
func ProvideMapper(i do.Injector) (*dto.Mapper, error) {
	return dto.NewMapper(do.MustInvoke[*validation.Validator](i)), nil
}

// mappingPolicy reads the configured policy for invalid records.
func mappingPolicy(cfg *config.Config) (dto.Policy, error) {
	return dto.ParsePolicy(cfg.Backend.MappingPolicy)
}
