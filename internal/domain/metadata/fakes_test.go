package metadata_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

// jsonStore keeps the cache as serialized bytes, so a new Cache over the same
// store sees exactly what a reload from disk would.
type jsonStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	loadErr error
}

func (s *jsonStore) Load() (*metadata.Tables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return nil, s.loadErr
	}
	t := metadata.NewTables()
	if len(s.data) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(s.data, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *jsonStore) Save(t *metadata.Tables) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

var errUpstream = errors.New("upstream unavailable")

// fakeCatalog is a CatalogClient backed by maps, counting every call.
type fakeCatalog struct {
	mu sync.Mutex

	searches   map[string][]metadata.RecordingCandidate
	recordings map[string]metadata.RecordingSummary
	artists    map[string]metadata.ArtistSummary
	releases   map[string]metadata.AlbumSummary
	missing    map[string]bool // ids the catalog answers 404 for
	searchErr  error

	searchCalls    []string
	recordingCalls int
	artistCalls    int
	releaseCalls   int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		searches:   make(map[string][]metadata.RecordingCandidate),
		recordings: make(map[string]metadata.RecordingSummary),
		artists:    make(map[string]metadata.ArtistSummary),
		releases:   make(map[string]metadata.AlbumSummary),
		missing:    make(map[string]bool),
	}
}

// lookupErr is the error for an id absent from the fake's maps.
func (f *fakeCatalog) lookupErr(id string) error {
	if f.missing[id] {
		return fmt.Errorf("lookup %s: %w", id, metadata.ErrNotFound)
	}
	return errUpstream
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searchCalls) + f.recordingCalls + f.artistCalls + f.releaseCalls
}

func (f *fakeCatalog) SearchRecordings(ctx context.Context, query string, limit int) ([]metadata.RecordingCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searches[query], nil
}

func (f *fakeCatalog) GetRecording(ctx context.Context, id string) (metadata.RecordingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordingCalls++
	rec, ok := f.recordings[id]
	if !ok {
		return metadata.RecordingSummary{}, f.lookupErr(id)
	}
	return rec, nil
}

func (f *fakeCatalog) GetArtist(ctx context.Context, id string) (metadata.ArtistSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artistCalls++
	a, ok := f.artists[id]
	if !ok {
		return metadata.ArtistSummary{}, f.lookupErr(id)
	}
	return a, nil
}

func (f *fakeCatalog) GetRelease(ctx context.Context, id string) (metadata.AlbumSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	a, ok := f.releases[id]
	if !ok {
		return metadata.AlbumSummary{}, f.lookupErr(id)
	}
	return a, nil
}

func (f *fakeCatalog) SearchArtists(ctx context.Context, term string, limit int) ([]metadata.ArtistHit, error) {
	return []metadata.ArtistHit{{Name: term, ID: "artist-" + term}}, nil
}

func (f *fakeCatalog) SearchReleases(ctx context.Context, term string, limit int) ([]metadata.AlbumHit, error) {
	return []metadata.AlbumHit{{Artist: "Someone", Title: term, ID: "release-" + term}}, nil
}

// fakeLyrics is a LyricsClient returning canned results per query.
type fakeLyrics struct {
	mu      sync.Mutex
	results map[string][]metadata.LyricsCandidate
	err     error
	queries []string
}

func newFakeLyrics() *fakeLyrics {
	return &fakeLyrics{results: make(map[string][]metadata.LyricsCandidate)}
}

func (f *fakeLyrics) Search(ctx context.Context, query string) ([]metadata.LyricsCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func (f *fakeLyrics) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}
