package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/cewkb/kbsearch/internal/domain"
)

var (
	keyCurrent = []byte("collection/current")
	keyMeta    = []byte("collection/meta")
)

// snapshotFormat is bumped whenever the stored shape changes; older
// snapshots are treated as absent.
const snapshotFormat = 1

// ErrNoSnapshot is returned by Load when nothing usable has been saved.
var ErrNoSnapshot = errors.New("no collection snapshot")

// SnapshotMeta describes the stored snapshot.
type SnapshotMeta struct {
	Format   int       `json:"format"`
	SavedAt  time.Time `json:"saved_at"`
	Articles int       `json:"articles"`
	Tags     int       `json:"tags"`
}

type snapshot struct {
	Format   int              `json:"format"`
	Articles []domain.Article `json:"articles"`
	Tags     []domain.Tag     `json:"tags"`
}

// Name implements catalog.Source.
func (s *Store) Name() string { return "snapshot" }

// Save replaces the stored collection. It implements catalog.Sink.
func (s *Store) Save(ctx context.Context, col domain.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(snapshot{Format: snapshotFormat, Articles: col.Articles, Tags: col.Tags})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	meta, err := json.Marshal(SnapshotMeta{
		Format:   snapshotFormat,
		SavedAt:  time.Now().UTC(),
		Articles: len(col.Articles),
		Tags:     len(col.Tags),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot meta: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyCurrent, data); err != nil {
			return err
		}
		return txn.Set(keyMeta, meta)
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	s.logger.Debug("collection snapshot saved", "articles", len(col.Articles), "tags", len(col.Tags), "bytes", len(data))
	return nil
}

// Load returns the stored collection. It implements catalog.Source.
func (s *Store) Load(ctx context.Context) (domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return domain.Collection{}, err
	}

	var snap snapshot
	err := s.get(keyCurrent, func(val []byte) error { return json.Unmarshal(val, &snap) })
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return domain.Collection{}, ErrNoSnapshot
	case err != nil:
		return domain.Collection{}, fmt.Errorf("failed to read snapshot: %w", err)
	case snap.Format != snapshotFormat:
		return domain.Collection{}, fmt.Errorf("%w: format %d", ErrNoSnapshot, snap.Format)
	}
	return domain.Collection{Articles: snap.Articles, Tags: snap.Tags}, nil
}

// Meta describes the stored snapshot. ok is false when there is none.
func (s *Store) Meta() (meta SnapshotMeta, ok bool, err error) {
	found, err := s.exists(keyMeta)
	if err != nil || !found {
		return SnapshotMeta{}, false, err
	}
	err = s.get(keyMeta, func(val []byte) error { return json.Unmarshal(val, &meta) })
	if err != nil {
		return SnapshotMeta{}, false, fmt.Errorf("failed to read snapshot meta: %w", err)
	}
	return meta, true, nil
}

// Clear removes the stored snapshot.
func (s *Store) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(keyCurrent); err != nil {
			return err
		}
		return txn.Delete(keyMeta)
	})
}
