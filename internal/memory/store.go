// Package memory implements the tiered persistence layer: the L0 raw log,
// L2 insights with their FTS5 companion, the bounded working set, the stale
// archive, reflection episodes, ground-truth records and the API cost
// ledger, all in one SQLite database.
package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultDimensions is the embedding width enforced at insert time unless
// the store is constructed with another value.
const DefaultDimensions = 1536

// Store owns the SQLite handle. Every write runs in one explicit
// transaction; the single-connection pool serializes writers.
type Store struct {
	db   *sql.DB
	path string
	dims int
}

// NewStore opens (creating if necessary) the database at path and applies
// pending migrations. Pass ":memory:" for an ephemeral store in tests.
// dims is the embedding dimension enforced on insert; <=0 selects the
// default.
func NewStore(path string, dims int) (*Store, error) {
	if dims <= 0 {
		dims = DefaultDimensions
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps :memory: databases alive and makes write
	// transactions mutually exclusive.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, path: path, dims: dims}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for packages that share the database, such as the
// knowledge graph store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dimensions reports the embedding width this store enforces.
func (s *Store) Dimensions() int {
	return s.dims
}

// Path reports the backing file, or ":memory:".
func (s *Store) Path() string {
	return s.path
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
