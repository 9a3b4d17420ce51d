package cache_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
	"github.com/edumarques81/stellar-metadata/internal/infra/cache"
)

func TestJSONFileStoreMissingFile(t *testing.T) {
	store := cache.NewJSONFileStore(filepath.Join(t.TempDir(), "missing.json"))

	tables, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tables == nil || tables.Queries == nil || tables.Lyrics == nil {
		t.Fatalf("Expected initialized empty tables, got %+v", tables)
	}
}

func TestJSONFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	tables, err := cache.NewJSONFileStore(path).Load()
	if err != nil {
		t.Fatalf("Expected corrupt file to load as empty, got %v", err)
	}
	if len(tables.Queries) != 0 {
		t.Errorf("Expected empty tables, got %+v", tables.Queries)
	}
}

func TestJSONFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	store := cache.NewJSONFileStore(path)

	want := sampleTables()
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := cache.NewJSONFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tables differ after reload:\ngot:  %+v\nwant: %+v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the cache file, found %d entries", len(entries))
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := cache.NewMemoryStore()

	tables := metadata.NewTables()
	tables.Queries["q"] = "a"
	if err := store.Save(tables); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// later in-memory changes are not visible until saved again
	tables.Queries["q"] = "b"

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Queries["q"] != "a" {
		t.Errorf("Expected snapshot value 'a', got %q", got.Queries["q"])
	}
}
