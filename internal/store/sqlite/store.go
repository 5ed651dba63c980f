// Package sqlite reads the article collection from a SQL replica: an
// embedded SQLite file (modernc.org/sqlite) or PostgreSQL through pgx.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

//go:embed schema.sql
var schemaSQL string

// Store reads (and, for seeding, writes) the articles, tags and
// article_tags tables.
type Store struct {
	db     *sql.DB
	driver string
	policy dto.Policy
	mapper *dto.Mapper
	logger *slog.Logger
}

// Options configures a Store.
type Options struct {
	Policy dto.Policy
	Mapper *dto.Mapper
	Logger *slog.Logger
}

// Open connects to dsn with driver. SQLite databases get WAL pragmas and the
// embedded schema; PostgreSQL replicas are expected to carry the tables
// already.
func Open(driver, dsn string, opts Options) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if opts.Policy == "" {
		opts.Policy = dto.PolicySkip
	}
	if opts.Mapper == nil {
		opts.Mapper = dto.NewMapper(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if driver == DriverSQLite {
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA foreign_keys=ON",
			"PRAGMA busy_timeout=5000",
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
			}
		}
		if _, err := db.Exec(schemaSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec schema: %w", err)
		}
	}

	return &Store{
		db:     db,
		driver: driver,
		policy: opts.Policy,
		mapper: opts.Mapper,
		logger: opts.Logger,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name implements catalog.Source.
func (s *Store) Name() string { return "sql" }

// ph returns the nth (1-based) bind placeholder for the driver.
func (s *Store) ph(n int) string {
	if s.driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
