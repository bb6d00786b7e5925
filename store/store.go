// Package store provides the SQLite-backed persistence layer: a per-actor
// key/value table for the persist host calls and an archive of exported
// audit logs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/kestrelvm/kestrel/vm"
	"github.com/kestrelvm/kestrel/vm/cap"
)

// ErrNotFound indicates the requested key has no stored value.
var ErrNotFound = errors.New("key not found")

// ErrNotPersistable indicates the value references actor-local heap memory
// and cannot outlive its arena.
var ErrNotPersistable = errors.New("value is not persistable")

// Store handles SQLite storage for actor state and audit archives.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			actor INTEGER NOT NULL,
			key INTEGER NOT NULL,
			bits INTEGER NOT NULL,
			PRIMARY KEY (actor, key)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_runs (
			run_id TEXT PRIMARY KEY,
			data BLOB NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores an immediate value under (actor, key). Heap-backed values are
// rejected: a handle is only meaningful relative to its arena generation.
func (s *Store) Put(actor uint32, key int64, v vm.Value) error {
	if v.IsHandle() || v.IsClosure() {
		return ErrNotPersistable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO kv (actor, key, bits) VALUES (?, ?, ?)",
		actor, key, int64(v.Bits()),
	)
	if err != nil {
		return fmt.Errorf("storing key %d for actor %d: %w", key, actor, err)
	}
	return nil
}

// Get retrieves the value stored under (actor, key).
func (s *Store) Get(actor uint32, key int64) (vm.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bits int64
	err := s.db.QueryRow(
		"SELECT bits FROM kv WHERE actor = ? AND key = ?", actor, key,
	).Scan(&bits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vm.Nil, ErrNotFound
		}
		return vm.Nil, fmt.Errorf("querying key %d for actor %d: %w", key, actor, err)
	}
	return vm.ValueFromBits(uint64(bits)), nil
}

// ArchiveAudit stores the canonical encoding of an audit export under its
// run identifier.
func (s *Store) ArchiveAudit(export *cap.Export) error {
	data, err := cap.MarshalExport(export)
	if err != nil {
		return fmt.Errorf("encoding audit export: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		"INSERT OR REPLACE INTO audit_runs (run_id, data) VALUES (?, ?)",
		export.RunID, data,
	); err != nil {
		return fmt.Errorf("archiving audit run %s: %w", export.RunID, err)
	}
	return nil
}

// LoadAudit retrieves an archived audit export by run identifier.
func (s *Store) LoadAudit(runID string) (*cap.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow("SELECT data FROM audit_runs WHERE run_id = ?", runID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying audit run %s: %w", runID, err)
	}
	return cap.UnmarshalExport(data)
}
