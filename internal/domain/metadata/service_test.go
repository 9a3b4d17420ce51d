package metadata_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata/internal/domain/lyrics"
	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

type fakeIdentifier struct {
	fpID, recID string
	calls       int
}

func (f *fakeIdentifier) Identify(ctx context.Context, path string) (string, string) {
	f.calls++
	return f.fpID, f.recID
}

type fakeReader struct {
	artist, title string
	err           error
}

func (f *fakeReader) ReadArtistTitle(path string) (string, string, error) {
	return f.artist, f.title, f.err
}

func seededCatalog() *fakeCatalog {
	client := newFakeCatalog()
	client.searches["Artist - Song"] = []metadata.RecordingCandidate{
		{ID: "rec-1", Title: "Song", ISRCs: []string{"GBAAA0000001"}},
	}
	client.recordings["rec-1"] = metadata.RecordingSummary{
		ID:        "rec-1",
		Title:     "Song",
		ArtistIDs: []string{"a1", "a2"},
		ISRCs:     []string{"GBAAA0000001"},
		Releases: []metadata.ReleaseRef{
			{ID: "r1", Title: "Song (Single)", Status: "Official"},
			{ID: "r2", Title: "Album", Status: "Official", Country: "US"},
		},
	}
	client.artists["a1"] = metadata.ArtistSummary{ID: "a1", Name: "Artist"}
	client.artists["a2"] = metadata.ArtistSummary{ID: "a2", Name: "Guest"}
	return client
}

func seededLyrics() *fakeLyrics {
	client := newFakeLyrics()
	client.results["Artist, Guest - Song"] = []metadata.LyricsCandidate{
		{Plain: "Hello\nWorld", Synced: "[00:12.50] Hello\n[01:05.00] World"},
	}
	return client
}

func newTestService(store *jsonStore, catalog *fakeCatalog, lyr *fakeLyrics, opts ...metadata.ServiceOption) *metadata.Service {
	cache := metadata.NewCache(store)
	return metadata.NewService(
		metadata.NewCatalog(catalog, cache),
		metadata.NewLyricsResolver(lyr, cache),
		opts...,
	)
}

func TestResolveTrack_FullPipeline(t *testing.T) {
	catalog, lyr := seededCatalog(), seededLyrics()
	svc := newTestService(&jsonStore{}, catalog, lyr)

	res, err := svc.ResolveTrack(context.Background(), "Artist", "Song")
	if err != nil {
		t.Fatalf("ResolveTrack failed: %v", err)
	}

	if res.ResolutionID == "" {
		t.Error("expected a resolution id")
	}
	if !res.Found() || res.Recording.ID != "rec-1" {
		t.Fatalf("expected rec-1, got %+v", res.Recording)
	}
	if got := res.ArtistNames(); !reflect.DeepEqual(got, []string{"Artist", "Guest"}) {
		t.Errorf("unexpected artists: %v", got)
	}
	if got := res.ReleaseIDs(); !reflect.DeepEqual(got, []string{"r2"}) {
		t.Errorf("unexpected albums: %v", got)
	}
	if res.Albums["r2"].Country != "United States" {
		t.Errorf("expected country display name, got %q", res.Albums["r2"].Country)
	}
	if !res.Lyrics.Found() {
		t.Fatal("expected lyrics")
	}
	if lyr.queries[0] != "Artist, Guest - Song" {
		t.Errorf("expected lyrics query from resolved artists, got %q", lyr.queries[0])
	}
	if res.SyncedLyrics == nil || res.SyncedLyrics.LineAt(40) != "Hello" {
		t.Errorf("expected parsed synchronized lyrics, got %+v", res.SyncedLyrics)
	}
}

func TestResolveTrack_PersistedCacheNeedsNoUpstream(t *testing.T) {
	store := &jsonStore{}
	catalog, lyr := seededCatalog(), seededLyrics()

	first, err := newTestService(store, catalog, lyr).ResolveTrack(context.Background(), "Artist", "Song")
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	catalogCalls, lyricsCalls := catalog.calls(), lyr.calls()

	// a fresh cache over the same store reloads from the serialized form
	second, err := newTestService(store, catalog, lyr).ResolveTrack(context.Background(), "Artist", "Song")
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}

	if catalog.calls() != catalogCalls || lyr.calls() != lyricsCalls {
		t.Errorf("expected no upstream calls, catalog %d->%d lyrics %d->%d",
			catalogCalls, catalog.calls(), lyricsCalls, lyr.calls())
	}

	first.ResolutionID, second.ResolutionID = "", ""
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ after reload:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestResolveTrack_NotFoundPlaceholder(t *testing.T) {
	lyr := newFakeLyrics()
	lyr.results["Unknown Song"] = []metadata.LyricsCandidate{{Plain: "p", Synced: "[00:01.00] p"}}
	store := &jsonStore{}
	svc := newTestService(store, newFakeCatalog(), lyr)

	res, err := svc.ResolveTrack(context.Background(), "Nobody", "Unknown Song")
	if err != nil {
		t.Fatalf("ResolveTrack failed: %v", err)
	}

	if res.Found() {
		t.Errorf("expected no recording, got %+v", res.Recording)
	}
	if res.Recording.Title != "Unknown Song" {
		t.Errorf("expected placeholder title, got %q", res.Recording.Title)
	}
	if !res.Lyrics.Found() {
		t.Error("expected lyrics via title-only fallback")
	}

	stats := metadata.NewCache(store).Stats()
	if stats.Recordings != 0 {
		t.Errorf("expected placeholder not cached, got %d recordings", stats.Recordings)
	}
}

func TestResolveTrack_MalformedSyncedLyrics(t *testing.T) {
	catalog := seededCatalog()
	lyr := newFakeLyrics()
	lyr.results["Artist, Guest - Song"] = []metadata.LyricsCandidate{
		{Plain: "p", Synced: "[00:01.00] ok\ngarbage"},
	}
	svc := newTestService(&jsonStore{}, catalog, lyr)

	res, err := svc.ResolveTrack(context.Background(), "Artist", "Song")
	if err != nil {
		t.Fatalf("expected resolution to succeed, got %v", err)
	}

	var perr *lyrics.ParseError
	if !errors.As(res.SyncedLyricsErr, &perr) {
		t.Fatalf("expected *lyrics.ParseError, got %v", res.SyncedLyricsErr)
	}
	if perr.Line != 2 {
		t.Errorf("expected line 2, got %d", perr.Line)
	}
	if res.SyncedLyrics != nil {
		t.Error("expected no index for malformed lyrics")
	}
	if !res.Found() || !res.Lyrics.Found() {
		t.Error("expected the rest of the result to be intact")
	}
}

func TestResolveFile_Fingerprint(t *testing.T) {
	catalog, lyr := seededCatalog(), seededLyrics()
	id := &fakeIdentifier{fpID: "fp-1", recID: "rec-1"}
	svc := newTestService(&jsonStore{}, catalog, lyr,
		metadata.WithIdentifier(id),
		metadata.WithTrackReader(&fakeReader{artist: "Wrong", title: "Wrong"}),
	)

	res, err := svc.ResolveFile(context.Background(), "/music/track.flac")
	if err != nil {
		t.Fatalf("ResolveFile failed: %v", err)
	}

	if res.FingerprintID != "fp-1" || res.Recording.ID != "rec-1" {
		t.Errorf("unexpected result: fp=%q rec=%q", res.FingerprintID, res.Recording.ID)
	}
	if len(catalog.searchCalls) != 0 {
		t.Errorf("expected text search to be skipped, got %v", catalog.searchCalls)
	}
}

func TestResolveFile_FallsBackToTags(t *testing.T) {
	catalog, lyr := seededCatalog(), seededLyrics()
	svc := newTestService(&jsonStore{}, catalog, lyr,
		metadata.WithIdentifier(&fakeIdentifier{}),
		metadata.WithTrackReader(&fakeReader{artist: "Artist", title: "Song"}),
	)

	res, err := svc.ResolveFile(context.Background(), "/music/track.flac")
	if err != nil {
		t.Fatalf("ResolveFile failed: %v", err)
	}
	if res.Recording.ID != "rec-1" {
		t.Errorf("expected rec-1 via tags, got %q", res.Recording.ID)
	}
}

func TestResolveFile_FallsBackToFileName(t *testing.T) {
	catalog := newFakeCatalog()
	svc := newTestService(&jsonStore{}, catalog, newFakeLyrics(),
		metadata.WithTrackReader(&fakeReader{err: errors.New("unsupported format")}),
	)

	if _, err := svc.ResolveFile(context.Background(), "/music/Some Song.mp3"); err != nil {
		t.Fatalf("ResolveFile failed: %v", err)
	}
	if len(catalog.searchCalls) != 1 || catalog.searchCalls[0] != "Some Song" {
		t.Errorf("expected search by file name, got %v", catalog.searchCalls)
	}
}

func TestResolveFile_LogLinesCarryResolutionID(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })

	svc := newTestService(&jsonStore{}, newFakeCatalog(), newFakeLyrics(),
		metadata.WithTrackReader(&fakeReader{err: errors.New("unsupported format")}),
	)
	res, err := svc.ResolveFile(context.Background(), "/music/Some Song.mp3")
	if err != nil {
		t.Fatalf("ResolveFile failed: %v", err)
	}

	sawTagFallback := false
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line struct {
			Resolution string `json:"resolution"`
			Message    string `json:"message"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode log line %q: %v", scanner.Text(), err)
		}
		if line.Resolution != res.ResolutionID {
			t.Errorf("log line %q has resolution %q, want %q", line.Message, line.Resolution, res.ResolutionID)
		}
		if line.Message == "Failed to read tags, using file name" {
			sawTagFallback = true
		}
	}
	if !sawTagFallback {
		t.Error("expected the tag read failure to be logged")
	}
}

func TestResolveID_SkipsSearch(t *testing.T) {
	catalog, lyr := seededCatalog(), seededLyrics()
	svc := newTestService(&jsonStore{}, catalog, lyr)

	res, err := svc.ResolveID(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("ResolveID failed: %v", err)
	}
	if res.Recording.Title != "Song" {
		t.Errorf("expected Song, got %q", res.Recording.Title)
	}
	if len(catalog.searchCalls) != 0 {
		t.Errorf("expected no search, got %v", catalog.searchCalls)
	}
}
