package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/errors"
	"github.com/cewkb/kbsearch/internal/logger"
)

// Options configures index construction and querying.
type Options struct {
	Fuzziness      int          // edit distance tolerated per term (0-2)
	MinQueryLength int          // trimmed queries shorter than this return nothing
	MaxResults     int          // 0 returns every match
	Logger         *slog.Logger // uses discard if nil
}

// MinQueryLength is the shortest trimmed query that is searched. Options may
// raise it but not lower it.
const MinQueryLength = 2

// DefaultOptions returns the tuning used when none is configured.
func DefaultOptions() Options {
	return Options{Fuzziness: 1, MinQueryLength: MinQueryLength}
}

// ErrIndexClosed is returned by Search after the last reference is released.
var ErrIndexClosed = errors.Unavailable("search index closed")

// Index is an immutable, in-memory search index over one article collection.
// It is never updated in place: a new collection gets a new Index.
//
// Index is reference counted. Build returns it holding one reference, each
// Retain adds one, and the underlying Bleve index closes with the last Release.
// Searches in flight keep the index open.
type Index struct {
	index    bleve.Index // nil for an empty collection
	articles map[string]domain.Article
	opts     Options
	logger   *slog.Logger

	refs   atomic.Int64
	mu     sync.RWMutex // held shared by searches, exclusively by close
	closed bool
}

// Build indexes articles. It is a pure function of its inputs and always
// builds from scratch.
func Build(ctx context.Context, articles []domain.Article, tags []domain.Tag, opts Options) (*Index, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.MinQueryLength < MinQueryLength {
		opts.MinQueryLength = MinQueryLength
	}

	ix := &Index{
		articles: make(map[string]domain.Article, len(articles)),
		opts:     opts,
		logger:   opts.Logger,
	}
	ix.refs.Store(1)

	for _, a := range articles {
		ix.articles[a.ID] = a
	}
	if len(ix.articles) == 0 {
		return ix, nil
	}

	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	if err := indexArticles(ctx, index, articles, domain.IndexTags(tags)); err != nil {
		_ = index.Close()
		return nil, err
	}

	ix.index = index
	ix.logger.Debug("built search index", "articles", len(ix.articles))
	return ix, nil
}

func indexArticles(ctx context.Context, index bleve.Index, articles []domain.Article, tags domain.TagIndex) error {
	const batchSize = 500

	for i := 0; i < len(articles); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(articles))

		batch := index.NewBatch()
		for _, a := range articles[i:end] {
			if err := batch.Index(a.ID, NewArticleDocument(a, tags).ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", a.ID, err)
			}
		}
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// Len returns the number of distinct articles indexed.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.articles)
}

// Options returns the options the index was built with.
func (ix *Index) Options() Options {
	return ix.opts
}

// Retain adds a reference. It returns false if the index is already closed,
// in which case the caller must not use it.
func (ix *Index) Retain() bool {
	for {
		n := ix.refs.Load()
		if n <= 0 {
			return false
		}
		if ix.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference. The last one closes the index after searches in
// flight have returned.
func (ix *Index) Release() error {
	if ix.refs.Add(-1) != 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.closed = true
	ix.articles = nil
	if ix.index == nil {
		return nil
	}
	err := ix.index.Close()
	ix.index = nil
	if err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return nil
}

// Close releases the reference returned by Build.
func (ix *Index) Close() error {
	return ix.Release()
}
