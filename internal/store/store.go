package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection holding the extraction results of one project.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// cacheDir returns the default cache directory for databases.
func cacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	dir := filepath.Join(home, ".cache", "module-sentinel")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir cache: %w", err)
	}
	return dir, nil
}

// Open opens or creates the database for project in the default cache directory.
func Open(project string) (*Store, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return OpenInDir(dir, project)
}

// OpenInDir opens or creates the database for project inside dir.
func OpenInDir(dir, project string) (*Store, error) {
	return OpenPath(filepath.Join(dir, project+".db"))
}

// OpenPath opens a SQLite database at the given path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory SQLite database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// Every pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dbPath: ":memory:"}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction.
// The callback receives a transaction-scoped Store; all store methods called on
// txStore use the transaction. The receiver's q field is never mutated, so
// concurrent readers using s.q == s.db are unaffected.
func (s *Store) WithTransaction(fn func(txStore *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY,
		indexed_at TEXT NOT NULL,
		root_path TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		started_at TEXT NOT NULL,
		finished_at TEXT DEFAULT '',
		files_total INTEGER DEFAULT 0,
		files_indexed INTEGER DEFAULT 0,
		files_skipped INTEGER DEFAULT 0,
		files_failed INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS file_hashes (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		rel_path TEXT NOT NULL,
		hash TEXT NOT NULL,
		PRIMARY KEY (project, rel_path)
	);

	CREATE TABLE IF NOT EXISTS files (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		language TEXT DEFAULT '',
		strategy TEXT DEFAULT '',
		status TEXT NOT NULL DEFAULT 'ok',
		reason TEXT DEFAULT '',
		quality_score REAL DEFAULT 0,
		duplicates_removed INTEGER DEFAULT 0,
		processing_ms INTEGER DEFAULT 0,
		processing TEXT DEFAULT '{}',
		module TEXT DEFAULT '',
		run_id TEXT DEFAULT '',
		PRIMARY KEY (project, file_path)
	);

	CREATE TABLE IF NOT EXISTS symbols (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		name TEXT NOT NULL,
		qualified_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		line INTEGER DEFAULT 0,
		col INTEGER DEFAULT 0,
		end_line INTEGER DEFAULT 0,
		signature TEXT DEFAULT '',
		return_type TEXT DEFAULT '',
		namespace TEXT DEFAULT '',
		parent_class TEXT DEFAULT '',
		confidence REAL DEFAULT 0,
		origin TEXT DEFAULT '',
		features TEXT DEFAULT '{}',
		UNIQUE(project, file_path, qualified_name, line, col)
	);

	CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(project, name);
	CREATE INDEX IF NOT EXISTS idx_symbols_qn ON symbols(project, qualified_name);
	CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(project, kind);

	CREATE TABLE IF NOT EXISTS relationships (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		from_name TEXT NOT NULL,
		to_name TEXT NOT NULL,
		type TEXT NOT NULL,
		confidence REAL DEFAULT 0,
		line INTEGER DEFAULT 0,
		cross_language INTEGER DEFAULT 0,
		metadata TEXT DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_rel_file ON relationships(project, file_path);
	CREATE INDEX IF NOT EXISTS idx_rel_from ON relationships(project, from_name, type);
	CREATE INDEX IF NOT EXISTS idx_rel_to ON relationships(project, to_name, type);

	CREATE TABLE IF NOT EXISTS patterns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		confidence REAL DEFAULT 0,
		details TEXT DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS function_metrics (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		qualified_name TEXT NOT NULL,
		symbol_name TEXT DEFAULT '',
		line INTEGER NOT NULL,
		cyclomatic INTEGER DEFAULT 1,
		cognitive INTEGER DEFAULT 0,
		nesting_depth INTEGER DEFAULT 0,
		lines_of_code INTEGER DEFAULT 0,
		call_sites INTEGER DEFAULT 0,
		maintainability REAL DEFAULT 0,
		halstead TEXT DEFAULT '{}',
		PRIMARY KEY (project, file_path, qualified_name, line)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// marshalProps serializes a JSON column value.
func marshalProps(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// unmarshalProps deserializes a JSON object column.
func unmarshalProps(data string) map[string]any {
	if data == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Now returns the current time in ISO 8601 format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
