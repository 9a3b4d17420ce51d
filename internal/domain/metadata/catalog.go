package metadata

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by a CatalogClient when the catalog answered that
// the requested entity does not exist. Such answers are cached; any other
// error is treated as a transient failure and retried on the next call.
var ErrNotFound = errors.New("not found")

// DefaultSearchLimit bounds the number of candidates requested per search.
const DefaultSearchLimit = 100

// RecordingCandidate is one row of a recording search.
type RecordingCandidate struct {
	ID             string
	Title          string
	Disambiguation string
	ISRCs          []string
	Artists        []string // credited display names
}

// CatalogClient is the music catalog as seen by the resolver. Implementations
// map upstream payloads to the summary types and drop everything else.
// Artist and release countries are returned as display names; ReleaseRef
// countries are left as territory codes.
type CatalogClient interface {
	SearchRecordings(ctx context.Context, query string, limit int) ([]RecordingCandidate, error)
	GetRecording(ctx context.Context, id string) (RecordingSummary, error)
	GetArtist(ctx context.Context, id string) (ArtistSummary, error)
	GetRelease(ctx context.Context, id string) (AlbumSummary, error)
	SearchArtists(ctx context.Context, term string, limit int) ([]ArtistHit, error)
	SearchReleases(ctx context.Context, term string, limit int) ([]AlbumHit, error)
}

// Catalog resolves queries and ids against a CatalogClient through the cache.
//
// Upstream failures are logged and reported as "not found". The only error
// returned by Catalog methods is the context's.
type Catalog struct {
	client      CatalogClient
	cache       *Cache
	policy      Policy
	searchLimit int
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithPolicy replaces the default filters.
func WithPolicy(p Policy) CatalogOption {
	return func(c *Catalog) {
		c.policy = p
	}
}

// WithSearchLimit sets the number of candidates requested per search.
func WithSearchLimit(n int) CatalogOption {
	return func(c *Catalog) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// NewCatalog creates a catalog resolver.
func NewCatalog(client CatalogClient, cache *Cache, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		client:      client,
		cache:       cache,
		policy:      DefaultPolicy(),
		searchLimit: DefaultSearchLimit,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BuildQuery returns the search text for an (artist, title) pair.
func BuildQuery(artist, title string) string {
	if artist != "" {
		return artist + " - " + title
	}
	return title
}

// logFor returns the request-scoped logger if one is attached to ctx.
func logFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// upstreamFailed converts a client error into the resolver's outcome: the
// context error if the caller gave up, nil otherwise.
func upstreamFailed(ctx context.Context, err error, msg string, id string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	logFor(ctx).Debug().Err(err).Str("id", id).Msg(msg)
	return nil
}

// ResolveID returns the recording id for an (artist, title) pair, or "" when
// nothing acceptable was found. Results, including misses, are cached per
// query; a failed search is not.
func (c *Catalog) ResolveID(ctx context.Context, artist, title string) (string, error) {
	query := BuildQuery(artist, title)
	if id, ok := c.cache.Query(query); ok {
		logFor(ctx).Debug().Str("query", query).Str("mbid", id).Msg("Query cache hit")
		return id, nil
	}

	candidates, err := c.client.SearchRecordings(ctx, query, c.searchLimit)
	if err != nil {
		return "", upstreamFailed(ctx, err, "Recording search failed", query)
	}

	id := c.pickRecording(candidates, c.policy.blacklistFor(title))

	logFor(ctx).Debug().
		Str("query", query).
		Str("mbid", id).
		Int("candidates", len(candidates)).
		Msg("Resolved recording query")

	c.cache.PutQuery(query, id)
	c.cache.flush(ctx)
	return id, nil
}

// pickRecording returns the first candidate that has a title and an ISRC and
// whose title and disambiguation avoid the blacklist.
func (c *Catalog) pickRecording(candidates []RecordingCandidate, blacklist []string) string {
	for _, r := range candidates {
		if acceptable(r, blacklist) {
			return r.ID
		}
	}
	return ""
}

func acceptable(r RecordingCandidate, blacklist []string) bool {
	if r.Title == "" || len(r.ISRCs) == 0 {
		return false
	}
	return !containsAny(r.Title, blacklist) && !containsAny(r.Disambiguation, blacklist)
}

// Recording returns the recording with the given id. ok is false when the
// catalog has no such recording or could not be reached.
func (c *Catalog) Recording(ctx context.Context, id string) (rec RecordingSummary, ok bool, err error) {
	if id == "" {
		return RecordingSummary{}, false, nil
	}
	if cached, hit := c.cache.Recording(id); hit {
		if cached.Missing {
			return RecordingSummary{}, false, nil
		}
		return cached, true, nil
	}

	rec, err = c.client.GetRecording(ctx, id)
	if errors.Is(err, ErrNotFound) {
		logFor(ctx).Debug().Str("id", id).Msg("Recording not in catalog")
		c.cache.PutRecording(id, RecordingSummary{Missing: true})
		c.cache.flush(ctx)
		return RecordingSummary{}, false, nil
	}
	if err != nil {
		return RecordingSummary{}, false, upstreamFailed(ctx, err, "Recording lookup failed", id)
	}
	if rec.ID == "" {
		rec.ID = id
	}

	c.cache.PutRecording(id, rec)
	c.cache.flush(ctx)
	return rec, true, nil
}

// Artists returns the credited artists keyed by display name. Ids are looked
// up once each; artists that cannot be fetched are left out. Two artists that
// share a name collapse into one entry.
func (c *Catalog) Artists(ctx context.Context, ids []string) (map[string]ArtistSummary, error) {
	out := make(map[string]ArtistSummary, len(ids))
	seen := make(map[string]bool, len(ids))
	mutated := false

	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if a, ok := c.cache.Artist(id); ok {
			if !a.Missing {
				out[a.Name] = a
			}
			continue
		}

		a, err := c.client.GetArtist(ctx, id)
		if errors.Is(err, ErrNotFound) {
			logFor(ctx).Debug().Str("id", id).Msg("Artist not in catalog")
			c.cache.PutArtist(id, ArtistSummary{Missing: true})
			mutated = true
			continue
		}
		if err != nil {
			if err := upstreamFailed(ctx, err, "Artist lookup failed", id); err != nil {
				return out, err
			}
			continue
		}
		if a.ID == "" {
			a.ID = id
		}

		c.cache.PutArtist(id, a)
		mutated = true
		out[a.Name] = a
	}

	if mutated {
		c.cache.flush(ctx)
	}
	return out, nil
}

// Albums returns the releases that pass the release filter, keyed by release
// id. Filtered releases are neither cached nor returned.
func (c *Catalog) Albums(ctx context.Context, refs []ReleaseRef) map[string]AlbumSummary {
	out := make(map[string]AlbumSummary)
	mutated := false

	for _, ref := range refs {
		if ref.ID == "" || !c.policy.keepRelease(ref) {
			continue
		}

		if a, ok := c.cache.Album(ref.ID); ok && !a.Missing {
			out[ref.ID] = a
			continue
		}

		a := AlbumSummary{
			ID:      ref.ID,
			Name:    ref.Title,
			Date:    ref.Date,
			Country: CountryName(ref.Country),
			Tracks:  ref.Tracks,
		}
		c.cache.PutAlbum(ref.ID, a)
		mutated = true
		out[ref.ID] = a
	}

	if mutated {
		c.cache.flush(ctx)
	}
	return out
}

// Album returns one release by id with its first tracks. A cached entry made
// from a recording's release list carries no tracks and is refreshed.
func (c *Catalog) Album(ctx context.Context, id string) (a AlbumSummary, ok bool, err error) {
	if id == "" {
		return AlbumSummary{}, false, nil
	}
	if cached, hit := c.cache.Album(id); hit {
		if cached.Missing {
			return AlbumSummary{}, false, nil
		}
		if len(cached.Tracks) > 0 {
			return cached, true, nil
		}
	}

	a, err = c.client.GetRelease(ctx, id)
	if errors.Is(err, ErrNotFound) {
		logFor(ctx).Debug().Str("id", id).Msg("Release not in catalog")
		c.cache.PutAlbum(id, AlbumSummary{Missing: true})
		c.cache.flush(ctx)
		return AlbumSummary{}, false, nil
	}
	if err != nil {
		return AlbumSummary{}, false, upstreamFailed(ctx, err, "Release lookup failed", id)
	}
	if a.ID == "" {
		a.ID = id
	}

	c.cache.PutAlbum(id, a)
	c.cache.flush(ctx)
	return a, true, nil
}

// SearchRecordings runs an uncached recording search with the same filtering
// as ResolveID, the blacklist being relaxed against the whole term.
func (c *Catalog) SearchRecordings(ctx context.Context, term string) ([]RecordingHit, error) {
	candidates, err := c.client.SearchRecordings(ctx, term, c.searchLimit)
	if err != nil {
		return nil, upstreamFailed(ctx, err, "Recording search failed", term)
	}

	blacklist := c.policy.blacklistFor(term)
	var hits []RecordingHit
	for _, r := range candidates {
		if !acceptable(r, blacklist) {
			continue
		}
		hits = append(hits, RecordingHit{
			Artist: strings.Join(r.Artists, ", "),
			Title:  r.Title,
			ID:     r.ID,
		})
	}
	return hits, nil
}

// SearchArtists runs an uncached artist search.
func (c *Catalog) SearchArtists(ctx context.Context, term string) ([]ArtistHit, error) {
	hits, err := c.client.SearchArtists(ctx, term, c.searchLimit)
	if err != nil {
		return nil, upstreamFailed(ctx, err, "Artist search failed", term)
	}
	return hits, nil
}

// SearchAlbums runs an uncached release search.
func (c *Catalog) SearchAlbums(ctx context.Context, term string) ([]AlbumHit, error) {
	hits, err := c.client.SearchReleases(ctx, term, c.searchLimit)
	if err != nil {
		return nil, upstreamFailed(ctx, err, "Release search failed", term)
	}
	return hits, nil
}
