package musicbrainz

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

const (
	// exampleCount is how many release or track titles are kept per entity.
	exampleCount = 3

	unknown = "Unknown"
)

var _ metadata.CatalogClient = (*Client)(nil)

// urlRelationTypes is the allow-list of artist URL relations that are kept.
var urlRelationTypes = map[string]bool{
	"youtube":           true,
	"imdb":              true,
	"viaf":              true,
	"soundcloud":        true,
	"wikidata":          true,
	"last.fm":           true,
	"lyrics":            true,
	"official homepage": true,
}

// SearchRecordings runs a free-text recording search.
func (c *Client) SearchRecordings(ctx context.Context, query string, limit int) ([]metadata.RecordingCandidate, error) {
	var resp recordingSearchResponse
	err := c.get(ctx, "/recording", url.Values{
		"query": {escapeQuery(query)},
		"limit": {strconv.Itoa(limit)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]metadata.RecordingCandidate, 0, len(resp.Recordings))
	for _, r := range resp.Recordings {
		out = append(out, metadata.RecordingCandidate{
			ID:             r.ID,
			Title:          r.Title,
			Disambiguation: r.Disambiguation,
			ISRCs:          r.ISRCs,
			Artists:        creditNames(r.ArtistCredit),
		})
	}

	log.Debug().
		Str("query", query).
		Int("results", len(out)).
		Msg("MusicBrainz recording search")
	return out, nil
}

// GetRecording looks up a recording with its credits, releases, ISRCs, tags
// and rating.
func (c *Client) GetRecording(ctx context.Context, id string) (metadata.RecordingSummary, error) {
	var resp recordingResponse
	err := c.get(ctx, "/recording/"+url.PathEscape(id), url.Values{
		"inc": {"artist-credits releases isrcs tags ratings"},
	}, &resp)
	if err != nil {
		return metadata.RecordingSummary{}, err
	}

	rec := metadata.RecordingSummary{
		ID:     resp.ID,
		Title:  resp.Title,
		ISRCs:  nonNil(resp.ISRCs),
		Rating: resp.Rating.Value,
		Tags:   tagNames(resp.Tags),
	}
	for _, ac := range resp.ArtistCredit {
		if ac.Artist.ID != "" {
			rec.ArtistIDs = append(rec.ArtistIDs, ac.Artist.ID)
		}
	}
	for _, r := range resp.Releases {
		rec.Releases = append(rec.Releases, metadata.ReleaseRef{
			ID:      r.ID,
			Title:   r.Title,
			Status:  r.Status,
			Date:    r.Date,
			Country: r.Country,
		})
		rec.ReleaseEventCount += len(r.ReleaseEvents)
	}

	return rec, nil
}

// GetArtist looks up an artist with its releases, URL relations and tags.
func (c *Client) GetArtist(ctx context.Context, id string) (metadata.ArtistSummary, error) {
	var resp artistResponse
	err := c.get(ctx, "/artist/"+url.PathEscape(id), url.Values{
		"inc": {"annotation releases url-rels tags"},
	}, &resp)
	if err != nil {
		return metadata.ArtistSummary{}, err
	}

	a := metadata.ArtistSummary{
		ID:      resp.ID,
		Name:    resp.Name,
		Gender:  orUnknown(resp.Gender),
		Country: metadata.CountryName(resp.Country),
		Tags:    tagNames(resp.Tags),
		IPIs:    nonNil(resp.IPIs),
		ISNIs:   nonNil(resp.ISNIs),
		Born:    orUnknown(resp.LifeSpan.Begin),
		Ended:   resp.LifeSpan.Ended,
		Comment: resp.Disambiguation,
		URLs:    make(map[string][]string),
	}

	for i, r := range resp.Releases {
		if i == exampleCount {
			break
		}
		a.ExampleTracks = append(a.ExampleTracks, r.Title)
	}

	for _, rel := range resp.Relations {
		kind := strings.ToLower(rel.Type)
		if !urlRelationTypes[kind] || rel.URL.Resource == "" {
			continue
		}
		a.URLs[kind] = append(a.URLs[kind], rel.URL.Resource)
	}

	return a, nil
}

// GetRelease looks up a release with the first tracks of its first medium.
func (c *Client) GetRelease(ctx context.Context, id string) (metadata.AlbumSummary, error) {
	var resp releaseResponse
	err := c.get(ctx, "/release/"+url.PathEscape(id), url.Values{
		"inc": {"recordings"},
	}, &resp)
	if err != nil {
		return metadata.AlbumSummary{}, err
	}

	album := metadata.AlbumSummary{
		ID:      resp.ID,
		Name:    resp.Title,
		Date:    resp.Date,
		Country: metadata.CountryName(resp.Country),
	}
	if len(resp.Media) > 0 {
		for i, t := range resp.Media[0].Tracks {
			if i == exampleCount {
				break
			}
			title := t.Recording.Title
			if title == "" {
				title = t.Title
			}
			album.Tracks = append(album.Tracks, title)
		}
	}

	return album, nil
}

// SearchArtists runs a free-text artist search.
func (c *Client) SearchArtists(ctx context.Context, term string, limit int) ([]metadata.ArtistHit, error) {
	var resp artistSearchResponse
	err := c.get(ctx, "/artist", url.Values{
		"query": {escapeQuery(term)},
		"limit": {strconv.Itoa(limit)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	hits := make([]metadata.ArtistHit, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		hits = append(hits, metadata.ArtistHit{Name: a.Name, ID: a.ID})
	}
	return hits, nil
}

// SearchReleases runs a free-text release search.
func (c *Client) SearchReleases(ctx context.Context, term string, limit int) ([]metadata.AlbumHit, error) {
	var resp releaseSearchResponse
	err := c.get(ctx, "/release", url.Values{
		"query": {escapeQuery(term)},
		"limit": {strconv.Itoa(limit)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	hits := make([]metadata.AlbumHit, 0, len(resp.Releases))
	for _, r := range resp.Releases {
		hits = append(hits, metadata.AlbumHit{
			Artist: strings.Join(creditNames(r.ArtistCredit), ", "),
			Title:  r.Title,
			ID:     r.ID,
		})
	}
	return hits, nil
}

// creditNames returns the credited names, preferring the name as credited on
// the entity over the artist's canonical name.
func creditNames(credits []artistCredit) []string {
	names := make([]string, 0, len(credits))
	for _, ac := range credits {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func tagNames(tags []tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
