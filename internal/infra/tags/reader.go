// Package tags reads artist and title hints from local audio files and
// writes resolved metadata back into them.
package tags

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"go.senan.xyz/taglib"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

var _ metadata.TrackReader = (*Reader)(nil)

// videoIDSuffix matches a trailing "[id]" left by downloaders.
var videoIDSuffix = regexp.MustCompile(`\s*\[[A-Za-z0-9_-]{5,}\]$`)

// Reader extracts (artist, title) from embedded tags with a file name
// fallback.
type Reader struct{}

// NewReader creates a tag reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadArtistTitle returns the best-effort (artist, title) for path. Unreadable
// tags are not an error; the file name is used instead.
func (r *Reader) ReadArtistTitle(path string) (string, string, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Failed to read tags, parsing file name")
		artist, title := ParseFilename(path)
		return artist, title, nil
	}

	title := firstTag(tags, taglib.Title)
	artist := firstTag(tags, taglib.Artist)
	if title == "" {
		fnArtist, fnTitle := ParseFilename(path)
		if artist == "" {
			artist = fnArtist
		}
		return artist, fnTitle, nil
	}

	return artist, StripArtistPrefix(artist, title), nil
}

// StripArtistPrefix removes a leading "Artist - " from title when it repeats
// the tagged artist, or any "X - " prefix when the artist is unknown.
func StripArtistPrefix(artist, title string) string {
	before, after, ok := strings.Cut(title, " - ")
	if !ok {
		return title
	}
	if artist == "" || strings.EqualFold(strings.TrimSpace(before), strings.TrimSpace(artist)) {
		return strings.TrimSpace(after)
	}
	return title
}

// ParseFilename derives (artist, title) from "Artist - Title [id].ext". A
// name without the separator is all title.
func ParseFilename(path string) (string, string) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSpace(videoIDSuffix.ReplaceAllString(name, ""))

	artist, title, ok := strings.Cut(name, " - ")
	if !ok {
		return "", name
	}
	return strings.TrimSpace(artist), strings.TrimSpace(title)
}

func firstTag(tags map[string][]string, key string) string {
	if vals, ok := tags[key]; ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
