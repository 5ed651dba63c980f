// Package catalog holds the current article collection and its search index,
// loaded from an ordered chain of sources.
package catalog

import (
	"context"
	"log/slog"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/errors"
	"github.com/cewkb/kbsearch/internal/logger"
)

// Source loads a full collection. Implementations report their own failures;
// the loader never retries.
type Source interface {
	Name() string
	Load(ctx context.Context) (domain.Collection, error)
}

// Sink keeps a copy of the last collection loaded from the primary source.
type Sink interface {
	Save(ctx context.Context, col domain.Collection) error
}

// LoadResult is a collection plus where it came from.
type LoadResult struct {
	Collection   domain.Collection
	Source       string
	UsedFallback bool
}

// Loader tries the primary source, then each fallback in order. The first
// success wins.
type Loader struct {
	primary   Source
	fallbacks []Source
	sink      Sink
	logger    *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFallbacks appends fallback sources, tried in order.
func WithFallbacks(sources ...Source) LoaderOption {
	return func(l *Loader) {
		for _, s := range sources {
			if s != nil {
				l.fallbacks = append(l.fallbacks, s)
			}
		}
	}
}

// WithSink saves every primary load to sink.
func WithSink(sink Sink) LoaderOption {
	return func(l *Loader) { l.sink = sink }
}

// WithLogger sets the loader's logger.
func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = log }
}

// NewLoader creates a loader around primary.
func NewLoader(primary Source, opts ...LoaderOption) *Loader {
	l := &Loader{primary: primary, logger: logger.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the first collection any source yields. When every source
// fails it returns an empty collection flagged as fallback together with an
// errors.ErrUnavailable joined with each source's error.
func (l *Loader) Load(ctx context.Context) (LoadResult, error) {
	var errs []error

	if l.primary != nil {
		col, err := l.primary.Load(ctx)
		if err == nil {
			l.save(ctx, col)
			return LoadResult{Collection: col, Source: l.primary.Name()}, nil
		}
		l.logger.Warn("primary source failed", "source", l.primary.Name(), "error", err)
		errs = append(errs, err)
	}

	for _, src := range l.fallbacks {
		if ctx.Err() != nil {
			break
		}
		col, err := src.Load(ctx)
		if err != nil {
			l.logger.Debug("fallback source failed", "source", src.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		l.logger.Info("using fallback collection", "source", src.Name(), "articles", len(col.Articles))
		return LoadResult{Collection: col, Source: src.Name(), UsedFallback: true}, nil
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	unavailable := errors.Unavailable("no collection source succeeded").WithCause(errors.Join(errs...))
	return LoadResult{UsedFallback: true}, unavailable
}

func (l *Loader) save(ctx context.Context, col domain.Collection) {
	if l.sink == nil {
		return
	}
	if err := l.sink.Save(ctx, col); err != nil {
		l.logger.Warn("failed to save collection snapshot", "error", err)
	}
}
