// Package store implements the persistent local table store on top of
// SQLite: versioned schema application, per-resource tables indexed by
// a simple or compound primary key, and whole-record JSON documents.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// metaTable records each table's schema fragment so key fields survive
// reopen.
const metaTable = "_resync_schema"

var (
	// ErrClosed is returned when an operation requires an open store.
	ErrClosed = errors.New("store is not open")

	// ErrOpen is returned when schema changes are attempted on an open
	// store. The migration sequence is close, apply, reopen.
	ErrOpen = errors.New("store must be closed before applying schema")

	// ErrUnknownTable is returned for tables absent from the schema.
	ErrUnknownTable = errors.New("unknown table")
)

// Store is a versioned local table store backed by a SQLite file.
type Store struct {
	path string

	mu      sync.Mutex
	db      *sql.DB
	version int
	tables  map[string][]string
}

// New creates a store for the given SQLite path. The store starts
// closed; Open loads the current schema and version.
func New(path string) *Store {
	return &Store{
		path:   path,
		tables: make(map[string][]string),
	}
}

// Open connects to the database and loads the schema catalog and
// version counter. Opening an already-open store is a no-op.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := ensureMeta(db); err != nil {
		db.Close()
		return err
	}

	tables, err := loadCatalog(db)
	if err != nil {
		db.Close()
		return err
	}

	version, err := readVersion(db)
	if err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.tables = tables
	s.version = version
	return nil
}

// Close releases the database connection. Closing a closed store is a
// no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// IsOpen reports whether the store currently holds a connection.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

// Version returns the schema version loaded at Open time.
func (s *Store) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// ApplySchema applies a batch of schema fragments as a single version
// increment. The store must be closed; the caller reopens it afterward.
// Tables that already exist are left untouched, so resubmitting an
// applied fragment is harmless.
func (s *Store) ApplySchema(fragments map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return ErrOpen
	}
	if len(fragments) == 0 {
		return nil
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := ensureMeta(db); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for name, fragment := range fragments {
		keyFields, err := ParseFragment(fragment)
		if err != nil {
			return fmt.Errorf("table %q: %w", name, err)
		}
		if _, err := tx.Exec(createTableDDL(name, keyFields)); err != nil {
			return fmt.Errorf("failed to create table %q: %w", name, err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf(`INSERT OR REPLACE INTO %q (table_name, fragment) VALUES (?, ?)`, metaTable),
			name, fragment,
		); err != nil {
			return fmt.Errorf("failed to record schema for %q: %w", name, err)
		}
	}

	version, err := readVersion(db)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
		return fmt.Errorf("failed to bump schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// Table returns a handle for a table present in the schema catalog.
func (s *Store) Table(name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrClosed
	}
	keyFields, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return &Table{store: s, name: name, keyFields: keyFields}, nil
}

// TableNames returns the names of all tables in the schema catalog.
func (s *Store) TableNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	return names
}

// conn returns the live connection for table operations.
func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// createTableDDL builds the table DDL: one TEXT column per key field, a
// doc column holding the full JSON record, and a primary key over the
// key columns in declared order.
func createTableDDL(name string, keyFields []string) string {
	cols := ""
	pk := ""
	for i, field := range keyFields {
		if i > 0 {
			cols += ", "
			pk += ", "
		}
		cols += fmt.Sprintf("%q TEXT NOT NULL", field)
		pk += fmt.Sprintf("%q", field)
	}
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (%s, doc TEXT NOT NULL, PRIMARY KEY (%s))`,
		name, cols, pk,
	)
}

func ensureMeta(db *sql.DB) error {
	_, err := db.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (table_name TEXT PRIMARY KEY, fragment TEXT NOT NULL)`,
		metaTable,
	))
	if err != nil {
		return fmt.Errorf("failed to ensure schema catalog: %w", err)
	}
	return nil
}

func loadCatalog(db *sql.DB) (map[string][]string, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT table_name, fragment FROM %q`, metaTable))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema catalog: %w", err)
	}
	defer rows.Close()

	tables := make(map[string][]string)
	for rows.Next() {
		var name, fragment string
		if err := rows.Scan(&name, &fragment); err != nil {
			return nil, fmt.Errorf("failed to scan schema catalog: %w", err)
		}
		keyFields, err := ParseFragment(fragment)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", name, err)
		}
		tables[name] = keyFields
	}
	return tables, rows.Err()
}

func readVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
