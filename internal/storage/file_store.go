package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kruplan/kruplan/internal/fault"
)

// FileStore persists each key as a JSON file inside a data directory.
// Writes go through a temporary file plus rename so that a crash mid-write
// never leaves a torn value behind.
type FileStore struct {
	dataDir string
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fault.StorageError("failed to create data directory").
			WithCause(err).
			WithContext("data_dir", dataDir).
			Build()
	}
	return &FileStore{dataDir: dataDir}, nil
}

// Get reads the value stored under key. An absent file is not an error.
func (fs *FileStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fault.StorageError("failed to read value").
			WithCause(err).
			WithContext("key", key).
			Build()
	}
	return data, true, nil
}

// Set atomically replaces the value stored under key.
func (fs *FileStore) Set(key string, value []byte) error {
	path := fs.path(key)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fault.StorageError("failed to write temporary value file").
			WithCause(err).
			WithContext("key", key).
			Build()
	}
	if err := os.Rename(tmp, path); err != nil {
		return fault.StorageError("failed to replace value file").
			WithCause(err).
			WithContext("key", key).
			Build()
	}
	return nil
}

// Close is a no-op; the file store holds no open handles between calls.
func (fs *FileStore) Close() error { return nil }

// path maps a key to a file name, replacing separators so a key can never
// escape the data directory.
func (fs *FileStore) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(fs.dataDir, safe+".json")
}
