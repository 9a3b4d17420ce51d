// Package metadata resolves noisy (artist, title) pairs into canonical
// catalog metadata: recording, credited artists, releases and lyrics.
package metadata

import (
	"sort"
	"strings"

	"github.com/edumarques81/stellar-metadata/internal/domain/lyrics"
)

// ReleaseRef is a release as referenced from a recording.
type ReleaseRef struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Status  string   `json:"status,omitempty"`
	Date    string   `json:"date,omitempty"`
	Country string   `json:"country,omitempty"` // territory code as supplied by the catalog
	Tracks  []string `json:"tracks,omitempty"`
}

// RecordingSummary holds the subset of a catalog recording that is kept.
type RecordingSummary struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	ArtistIDs         []string     `json:"artist_ids"`
	ISRCs             []string     `json:"isrcs"`
	Rating            *float64     `json:"rating,omitempty"`
	Tags              []string     `json:"tags"`
	Releases          []ReleaseRef `json:"releases"`
	ReleaseEventCount int          `json:"release_event_count"`
	Missing           bool         `json:"missing,omitempty"`
}

// ArtistSummary holds the subset of a catalog artist that is kept.
type ArtistSummary struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	ExampleTracks []string            `json:"example_tracks"`
	Gender        string              `json:"gender"`
	Country       string              `json:"country"`
	Tags          []string            `json:"tags"`
	IPIs          []string            `json:"ipis"`
	ISNIs         []string            `json:"isnis"`
	Born          string              `json:"born"`
	Ended         bool                `json:"ended"`
	Comment       string              `json:"comment"`
	URLs          map[string][]string `json:"urls"`
	Missing       bool                `json:"missing,omitempty"`
}

// AlbumSummary holds the subset of a catalog release that is kept.
type AlbumSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Date    string   `json:"date"`
	Country string   `json:"country"`
	Tracks  []string `json:"tracks"`
	Missing bool     `json:"missing,omitempty"`
}

// LyricsEntry is a plain/synchronized lyrics pair. The zero value is the
// "no lyrics" sentinel.
type LyricsEntry struct {
	Plain  string `json:"plain,omitempty"`
	Synced string `json:"synced,omitempty"`
}

// Found reports whether the entry carries lyrics.
func (e LyricsEntry) Found() bool {
	return e.Plain != "" || e.Synced != ""
}

// LyricsKey identifies a lyrics lookup. An empty Artist means the lookup was
// made by title only.
type LyricsKey struct {
	Artist string
	Title  string
}

const lyricsKeySep = "\x1f"

// MarshalText encodes the key so it can be used as a JSON object key.
func (k LyricsKey) MarshalText() ([]byte, error) {
	return []byte(k.Artist + lyricsKeySep + k.Title), nil
}

// UnmarshalText decodes a key written by MarshalText.
func (k *LyricsKey) UnmarshalText(b []byte) error {
	artist, title, ok := strings.Cut(string(b), lyricsKeySep)
	if !ok {
		// Keys without a separator are title-only lookups.
		k.Artist, k.Title = "", artist
		return nil
	}
	k.Artist, k.Title = artist, title
	return nil
}

// RecordingHit is a global-search row for a recording.
type RecordingHit struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	ID     string `json:"id"`
}

// ArtistHit is a global-search row for an artist.
type ArtistHit struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// AlbumHit is a global-search row for a release.
type AlbumHit struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	ID     string `json:"id"`
}

// Result is the composite outcome of one resolution call.
type Result struct {
	ResolutionID  string                   `json:"resolution_id"`
	FingerprintID string                   `json:"fingerprint_id,omitempty"`
	Recording     RecordingSummary         `json:"recording"`
	Artists       map[string]ArtistSummary `json:"artists"`
	Albums        map[string]AlbumSummary  `json:"albums"`
	Lyrics        LyricsEntry              `json:"lyrics"`

	// SyncedLyrics is derived from Lyrics.Synced and never cached.
	SyncedLyrics    *lyrics.Index `json:"-"`
	SyncedLyricsErr error         `json:"-"`
}

// Found reports whether a catalog recording was resolved.
func (r *Result) Found() bool {
	return r.Recording.ID != ""
}

// ReleaseIDs returns the ids of the retained albums.
func (r *Result) ReleaseIDs() []string {
	ids := make([]string, 0, len(r.Albums))
	for id := range r.Albums {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ArtistNames returns the display names of the credited artists in credit
// order.
func (r *Result) ArtistNames() []string {
	byID := make(map[string]string, len(r.Artists))
	for name, a := range r.Artists {
		byID[a.ID] = name
	}
	var names []string
	for _, id := range r.Recording.ArtistIDs {
		if name, ok := byID[id]; ok {
			names = append(names, name)
			delete(byID, id)
		}
	}
	return names
}
