// Package cache provides persistent backends for the metadata cache tables.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the SQLite cache.
	DefaultDBPath = "data/metadata_cache.db"
)

// SQLiteStore keeps the cache tables in a SQLite database. Each Save replaces
// the full contents inside one transaction.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a store for the database at path. Call Open before
// use.
func NewSQLiteStore(path string) *SQLiteStore {
	if path == "" {
		path = DefaultDBPath
	}
	return &SQLiteStore{
		path: path,
	}
}

// Open opens the database and initializes the schema. A file that is not a
// usable database is moved aside to path+".corrupt" and replaced by an empty
// one.
func (s *SQLiteStore) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	err := s.open()
	if err == nil {
		return nil
	}
	if _, statErr := os.Stat(s.path); statErr != nil {
		return err
	}

	log.Warn().Err(err).Str("path", s.path).Msg("Metadata cache database unreadable, starting empty")
	if qErr := s.quarantine(); qErr != nil {
		return fmt.Errorf("%w (move aside: %v)", err, qErr)
	}
	return s.open()
}

// open must be called with mu held.
func (s *SQLiteStore) open() error {
	db, err := sql.Open("sqlite3", s.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s.db = db

	if err := s.initSchema(); err != nil {
		s.db.Close()
		s.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug().Str("path", s.path).Msg("Metadata cache database opened")
	return nil
}

// quarantine renames the database and its WAL files out of the way.
func (s *SQLiteStore) quarantine() error {
	if err := os.Rename(s.path, s.path+".corrupt"); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	currentVersion := s.getSchemaVersion()

	if currentVersion == "" {
		if err := s.createSchema(); err != nil {
			return err
		}
		return s.setMeta(s.db, "schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating metadata cache schema")
		return s.setMeta(s.db, "schema_version", CurrentSchemaVersion)
	}

	return nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_results (
		query TEXT PRIMARY KEY,
		recording_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS artists (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS albums (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	-- artist is '' for title-only lookups
	CREATE TABLE IF NOT EXISTS lyrics (
		artist TEXT NOT NULL,
		title TEXT NOT NULL,
		plain TEXT NOT NULL DEFAULT '',
		synced TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (artist, title)
	);

	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getSchemaVersion() string {
	var version string
	err := s.db.QueryRow("SELECT value FROM cache_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) setMeta(ex execer, key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := ex.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, key, value, now, value, now)
	return err
}

// Load reads every table.
func (s *SQLiteStore) Load() (*metadata.Tables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, fmt.Errorf("database not open")
	}

	t := metadata.NewTables()

	rows, err := s.db.Query("SELECT query, recording_id FROM query_results")
	if err != nil {
		return nil, fmt.Errorf("load query_results: %w", err)
	}
	for rows.Next() {
		var query, id string
		if err := rows.Scan(&query, &id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan query_results: %w", err)
		}
		t.Queries[query] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load query_results: %w", err)
	}

	if err := loadJSON(s.db, "recordings", func(id string, data []byte) error {
		var rec metadata.RecordingSummary
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		t.Recordings[id] = rec
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadJSON(s.db, "artists", func(id string, data []byte) error {
		var a metadata.ArtistSummary
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		t.Artists[id] = a
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadJSON(s.db, "albums", func(id string, data []byte) error {
		var a metadata.AlbumSummary
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		t.Albums[id] = a
		return nil
	}); err != nil {
		return nil, err
	}

	rows, err = s.db.Query("SELECT artist, title, plain, synced FROM lyrics")
	if err != nil {
		return nil, fmt.Errorf("load lyrics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key metadata.LyricsKey
		var entry metadata.LyricsEntry
		if err := rows.Scan(&key.Artist, &key.Title, &entry.Plain, &entry.Synced); err != nil {
			return nil, fmt.Errorf("scan lyrics: %w", err)
		}
		t.Lyrics[key] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load lyrics: %w", err)
	}

	return t, nil
}

// loadJSON reads an (id, data) table, decoding each row with fn.
func loadJSON(db *sql.DB, table string, fn func(id string, data []byte) error) error {
	rows, err := db.Query("SELECT id, data FROM " + table)
	if err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		if err := fn(id, data); err != nil {
			return fmt.Errorf("decode %s %s: %w", table, id, err)
		}
	}
	return rows.Err()
}

// Save replaces the stored tables with t.
func (s *SQLiteStore) Save(t *metadata.Tables) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("database not open")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"query_results", "recordings", "artists", "albums", "lyrics"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for query, id := range t.Queries {
		if _, err := tx.Exec("INSERT INTO query_results (query, recording_id) VALUES (?, ?)", query, id); err != nil {
			return fmt.Errorf("insert query %q: %w", query, err)
		}
	}
	for id, rec := range t.Recordings {
		if err := insertJSON(tx, "recordings", id, rec); err != nil {
			return err
		}
	}
	for id, a := range t.Artists {
		if err := insertJSON(tx, "artists", id, a); err != nil {
			return err
		}
	}
	for id, a := range t.Albums {
		if err := insertJSON(tx, "albums", id, a); err != nil {
			return err
		}
	}
	for key, e := range t.Lyrics {
		if _, err := tx.Exec(
			"INSERT INTO lyrics (artist, title, plain, synced) VALUES (?, ?, ?, ?)",
			key.Artist, key.Title, e.Plain, e.Synced,
		); err != nil {
			return fmt.Errorf("insert lyrics %q: %w", key.Title, err)
		}
	}

	if err := s.setMeta(tx, "last_updated", time.Now().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("update cache_meta: %w", err)
	}

	return tx.Commit()
}

func insertJSON(tx *sql.Tx, table, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", table, id, err)
	}
	if _, err := tx.Exec("INSERT INTO "+table+" (id, data) VALUES (?, ?)", id, string(data)); err != nil {
		return fmt.Errorf("insert %s %s: %w", table, id, err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// SchemaVersion returns the stored schema version, or "" if the database is
// not open.
func (s *SQLiteStore) SchemaVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ""
	}
	return s.getSchemaVersion()
}
