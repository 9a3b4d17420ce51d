package metadata

import "context"

// LyricsCandidate is one result of a lyrics search. Either field may be empty.
type LyricsCandidate struct {
	Plain  string
	Synced string
}

// LyricsClient searches a lyrics service by free text.
type LyricsClient interface {
	Search(ctx context.Context, query string) ([]LyricsCandidate, error)
}

// LyricsResolver looks up lyrics through the cache, falling back to a
// title-only search when the artist yields nothing.
type LyricsResolver struct {
	client LyricsClient
	cache  *Cache
}

// NewLyricsResolver creates a lyrics resolver.
func NewLyricsResolver(client LyricsClient, cache *Cache) *LyricsResolver {
	return &LyricsResolver{client: client, cache: cache}
}

// Lyrics returns the first search result carrying both plain and synchronized
// lyrics. With an artist, at most one further attempt is made by title alone,
// since the artist may be an uploader rather than the performer.
//
// Each attempt caches its outcome under its own (artist, title) key, so a
// title-only hit is stored under the title-only key. The zero entry means no
// lyrics were found.
func (r *LyricsResolver) Lyrics(ctx context.Context, artist, title string) (LyricsEntry, error) {
	attempts := []string{artist}
	if artist != "" {
		attempts = append(attempts, "")
	}

	for _, a := range attempts {
		entry, err := r.attempt(ctx, LyricsKey{Artist: a, Title: title})
		if err != nil {
			return LyricsEntry{}, err
		}
		if entry.Found() {
			return entry, nil
		}
	}
	return LyricsEntry{}, nil
}

func (r *LyricsResolver) attempt(ctx context.Context, key LyricsKey) (LyricsEntry, error) {
	if entry, ok := r.cache.Lyrics(key); ok {
		logFor(ctx).Debug().
			Str("artist", key.Artist).
			Str("title", key.Title).
			Bool("found", entry.Found()).
			Msg("Lyrics cache hit")
		return entry, nil
	}

	query := BuildQuery(key.Artist, key.Title)
	candidates, err := r.client.Search(ctx, query)
	if err != nil {
		return LyricsEntry{}, upstreamFailed(ctx, err, "Lyrics search failed", query)
	}

	var entry LyricsEntry
	for _, c := range candidates {
		if c.Plain != "" && c.Synced != "" {
			entry = LyricsEntry{Plain: c.Plain, Synced: c.Synced}
			break
		}
	}

	logFor(ctx).Debug().
		Str("query", query).
		Int("candidates", len(candidates)).
		Bool("found", entry.Found()).
		Msg("Searched lyrics")

	r.cache.PutLyrics(key, entry)
	r.cache.flush(ctx)
	return entry, nil
}
