// Package store keeps the last good collection in an embedded badger
// database, so the service can start with data when the backend is down.
package store

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/cewkb/kbsearch/internal/logger"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Badger's own logging is too chatty
	opts.SyncWrites = true       // a snapshot must survive a crash
	opts.CompactL0OnClose = true // faster startup
	return open(opts, log)
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory(log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, log)
}

func open(opts badger.Options, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	log.Info("snapshot store opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return &Store{db: db, logger: log}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	s.logger.Info("closing snapshot store")
	return s.db.Close()
}

// get decodes the value at key into dest. A missing key reports
// badger.ErrKeyNotFound.
func (s *Store) get(key []byte, decode func([]byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(decode)
	})
}

func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
