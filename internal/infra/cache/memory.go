package cache

import (
	"encoding/json"
	"sync"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

// MemoryStore keeps a serialized snapshot in memory. It behaves like a file
// store whose file disappears with the process.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the last saved tables.
func (s *MemoryStore) Load() (*metadata.Tables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := metadata.NewTables()
	if s.data == nil {
		return t, nil
	}
	if err := json.Unmarshal(s.data, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Save snapshots t.
func (s *MemoryStore) Save(t *metadata.Tables) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}
