package tags

import (
	"fmt"
	"strings"

	"go.senan.xyz/taglib"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

var _ metadata.TagWriter = (*Writer)(nil)

// Extra keys with no taglib constant.
const (
	MusicBrainzTrackID = "MUSICBRAINZ_TRACKID"
	Lyrics             = "LYRICS"
	SyncedLyrics       = "LYRICS_SYNCED"
)

// Writer stores a resolved result in an audio file's tags.
type Writer struct{}

// NewWriter creates a tag writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteResolved writes the resolved fields to path. Synced lyrics are stored
// as raw text. Unresolved results are rejected.
func (w *Writer) WriteResolved(path string, res *metadata.Result) error {
	if res == nil || !res.Found() {
		return fmt.Errorf("write tags to %s: no resolved recording", path)
	}

	if err := taglib.WriteTags(path, BuildTags(res), 0); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", path, err)
	}
	return nil
}

// BuildTags maps a result to tag values. Empty fields are omitted so
// existing values survive.
func BuildTags(res *metadata.Result) map[string][]string {
	tags := make(map[string][]string)
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			tags[key] = []string{value}
		}
	}

	rec := res.Recording
	set(taglib.Title, rec.Title)
	set(MusicBrainzTrackID, rec.ID)
	if names := res.ArtistNames(); len(names) > 0 {
		set(taglib.Artist, strings.Join(names, ", "))
	}
	if len(rec.ISRCs) > 0 {
		set(taglib.ISRC, rec.ISRCs[0])
	}
	if ids := res.ReleaseIDs(); len(ids) > 0 {
		album := res.Albums[ids[0]]
		set(taglib.Album, album.Name)
		set(taglib.Date, album.Date)
	}
	set(Lyrics, res.Lyrics.Plain)
	set(SyncedLyrics, res.Lyrics.Synced)

	return tags
}
