package session

import (
	"github.com/cewkb/kbsearch/internal/browse"
	"github.com/cewkb/kbsearch/internal/catalog"
	"github.com/cewkb/kbsearch/internal/domain"
)

// Data is the collection a session queries, plus its derived facets.
type Data struct {
	Articles     []domain.Article
	Searcher     browse.Searcher
	Facets       browse.Facets
	Version      uint64
	UsedFallback bool

	release func()
}

// FromSnapshot takes a reference on snap and wraps it as Data. The session
// that receives the Data releases the reference when it moves on. ok is
// false when snap is nil or already retired.
func FromSnapshot(snap *catalog.Snapshot) (Data, bool) {
	if snap == nil || !snap.Acquire() {
		return Data{}, false
	}
	return Data{
		Articles:     snap.Collection.Articles,
		Searcher:     snap.Index,
		Facets:       snap.Facets,
		Version:      snap.Version,
		UsedFallback: snap.UsedFallback,
		release:      snap.Release,
	}, true
}

// Release drops the reference taken by FromSnapshot, if any.
func (d Data) Release() {
	if d.release != nil {
		d.release()
	}
}

// retainer is implemented by searchers whose resources are reference
// counted, such as *search.Index.
type retainer interface {
	Retain() bool
	Release() error
}
