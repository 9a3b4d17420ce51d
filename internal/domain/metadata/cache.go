package metadata

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tables is the persisted form of the cache: five maps that are never
// evicted. An empty string in Queries records a search that found nothing.
type Tables struct {
	Queries    map[string]string           `json:"query_results"`
	Recordings map[string]RecordingSummary `json:"recording_by_id"`
	Artists    map[string]ArtistSummary    `json:"artist_by_id"`
	Albums     map[string]AlbumSummary     `json:"album_by_id"`
	Lyrics     map[LyricsKey]LyricsEntry   `json:"lyrics_by_artist_title"`
}

// NewTables returns an empty set of tables.
func NewTables() *Tables {
	t := &Tables{}
	t.ensure()
	return t
}

// ensure replaces nil maps, which appear when a persisted file omits a table.
func (t *Tables) ensure() {
	if t.Queries == nil {
		t.Queries = make(map[string]string)
	}
	if t.Recordings == nil {
		t.Recordings = make(map[string]RecordingSummary)
	}
	if t.Artists == nil {
		t.Artists = make(map[string]ArtistSummary)
	}
	if t.Albums == nil {
		t.Albums = make(map[string]AlbumSummary)
	}
	if t.Lyrics == nil {
		t.Lyrics = make(map[LyricsKey]LyricsEntry)
	}
}

// Store persists the cache tables. Load must return empty tables, not an
// error, when nothing has been persisted yet.
type Store interface {
	Load() (*Tables, error)
	Save(t *Tables) error
}

// Stats counts the entries in each table.
type Stats struct {
	Queries    int `json:"queries"`
	NotFound   int `json:"not_found"`
	Recordings int `json:"recordings"`
	Artists    int `json:"artists"`
	Albums     int `json:"albums"`
	Lyrics     int `json:"lyrics"`
}

// Cache is the in-memory view of a Store. Tables are loaded on first use and
// written back whole by Flush.
type Cache struct {
	store Store

	mu     sync.RWMutex
	tables *Tables
	dirty  bool
}

// NewCache wraps a store. Nothing is read until the first lookup.
func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// load must be called with mu held for writing.
func (c *Cache) load() {
	if c.tables != nil {
		return
	}

	t, err := c.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load metadata cache, starting empty")
		t = nil
	}
	if t == nil {
		t = NewTables()
	}
	t.ensure()
	c.tables = t
}

func (c *Cache) read(fn func(t *Tables)) {
	c.mu.RLock()
	if c.tables != nil {
		fn(c.tables)
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	fn(c.tables)
}

func (c *Cache) write(fn func(t *Tables)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	fn(c.tables)
	c.dirty = true
}

// Query returns the recording id cached for a query. ok is true for cached
// misses too, in which case id is empty.
func (c *Cache) Query(query string) (id string, ok bool) {
	c.read(func(t *Tables) { id, ok = t.Queries[query] })
	return id, ok
}

// PutQuery records the outcome of a search. An empty id records a miss.
func (c *Cache) PutQuery(query, id string) {
	c.write(func(t *Tables) { t.Queries[query] = id })
}

// Recording returns a cached recording.
func (c *Cache) Recording(id string) (rec RecordingSummary, ok bool) {
	c.read(func(t *Tables) { rec, ok = t.Recordings[id] })
	return rec, ok
}

// PutRecording caches a recording under id and, when the catalog answered
// with a different canonical id, under that one too.
func (c *Cache) PutRecording(id string, rec RecordingSummary) {
	c.write(func(t *Tables) {
		t.Recordings[id] = rec
		if rec.ID != "" {
			t.Recordings[rec.ID] = rec
		}
	})
}

// Artist returns a cached artist.
func (c *Cache) Artist(id string) (a ArtistSummary, ok bool) {
	c.read(func(t *Tables) { a, ok = t.Artists[id] })
	return a, ok
}

// PutArtist caches an artist under id and its canonical id.
func (c *Cache) PutArtist(id string, a ArtistSummary) {
	c.write(func(t *Tables) {
		t.Artists[id] = a
		if a.ID != "" {
			t.Artists[a.ID] = a
		}
	})
}

// Album returns a cached album.
func (c *Cache) Album(id string) (a AlbumSummary, ok bool) {
	c.read(func(t *Tables) { a, ok = t.Albums[id] })
	return a, ok
}

// PutAlbum caches an album under id and its canonical release id.
func (c *Cache) PutAlbum(id string, a AlbumSummary) {
	c.write(func(t *Tables) {
		t.Albums[id] = a
		if a.ID != "" {
			t.Albums[a.ID] = a
		}
	})
}

// Lyrics returns cached lyrics. A cached "no lyrics" sentinel is returned with
// ok set and an entry whose Found is false.
func (c *Cache) Lyrics(key LyricsKey) (e LyricsEntry, ok bool) {
	c.read(func(t *Tables) { e, ok = t.Lyrics[key] })
	return e, ok
}

// PutLyrics caches lyrics, or the sentinel when e is the zero value.
func (c *Cache) PutLyrics(key LyricsKey, e LyricsEntry) {
	c.write(func(t *Tables) { t.Lyrics[key] = e })
}

// Flush writes the tables back to the store if anything changed since the
// last flush. The store sees the full tables; there is no partial write.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty || c.tables == nil {
		return nil
	}
	if err := c.store.Save(c.tables); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// flush is Flush for pipeline stages, where a failed save is logged and the
// in-memory result still returned.
func (c *Cache) flush(ctx context.Context) {
	if err := c.Flush(); err != nil {
		logFor(ctx).Warn().Err(err).Msg("Failed to save metadata cache")
	}
}

// Stats returns per-table entry counts.
func (c *Cache) Stats() Stats {
	var s Stats
	c.read(func(t *Tables) {
		s.Queries = len(t.Queries)
		for _, id := range t.Queries {
			if id == "" {
				s.NotFound++
			}
		}
		s.Recordings = len(t.Recordings)
		s.Artists = len(t.Artists)
		s.Albums = len(t.Albums)
		s.Lyrics = len(t.Lyrics)
	})
	return s
}
