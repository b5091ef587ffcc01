package storage

import (
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/kruplan/kruplan/internal/fault"
)

// SQLiteStore is a key-value store backed by a single SQLite table. Use
// ":memory:" for an ephemeral database or a file path for persistence.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens the database and creates the schema if needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fault.StorageError("failed to open sqlite database").
			WithCause(err).
			WithContext("path", dbPath).
			Build()
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fault.StorageError("failed to initialize sqlite schema").
			WithCause(err).
			Build()
	}

	return &SQLiteStore{db: db}, nil
}

// Get reads the value stored under key.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fault.StorageError("failed to query value").
			WithCause(err).
			WithContext("key", key).
			Build()
	}
	return value, true, nil
}

// Set upserts the value stored under key.
func (s *SQLiteStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fault.StorageError("failed to upsert value").
			WithCause(err).
			WithContext("key", key).
			Build()
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
