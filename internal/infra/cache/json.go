package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

// DefaultJSONPath is the default path of the JSON cache file.
const DefaultJSONPath = "metadata_cache.json"

// JSONFileStore keeps the cache tables in one JSON document.
type JSONFileStore struct {
	path string
}

// NewJSONFileStore creates a store for the file at path.
func NewJSONFileStore(path string) *JSONFileStore {
	if path == "" {
		path = DefaultJSONPath
	}
	return &JSONFileStore{path: path}
}

// Path returns the file backing the store.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load reads the file. A missing or unreadable file yields empty tables.
func (s *JSONFileStore) Load() (*metadata.Tables, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return metadata.NewTables(), nil
	}
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Metadata cache unreadable, starting empty")
		return metadata.NewTables(), nil
	}

	t := metadata.NewTables()
	if err := json.Unmarshal(data, t); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Metadata cache corrupt, starting empty")
		return metadata.NewTables(), nil
	}
	return t, nil
}

// Save writes the tables to a temporary file and renames it over the cache
// file, so readers never see a partial document.
func (s *JSONFileStore) Save(t *metadata.Tables) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
