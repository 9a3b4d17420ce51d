package metadata

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata/internal/domain/lyrics"
)

// Identifier derives a recording id from audio content. Both ids are empty
// when identification is unavailable or found nothing.
type Identifier interface {
	Identify(ctx context.Context, path string) (fingerprintID, recordingID string)
}

// TrackReader extracts a best-effort (artist, title) pair from a local file.
type TrackReader interface {
	ReadArtistTitle(path string) (artist, title string, err error)
}

// TagWriter persists a resolved result back into an audio file.
type TagWriter interface {
	WriteResolved(path string, res *Result) error
}

// Service sequences fingerprinting, catalog resolution and lyrics lookup into
// one Result. Stages run one after another; each consumes ids produced by the
// previous one.
type Service struct {
	catalog    *Catalog
	lyrics     *LyricsResolver
	identifier Identifier
	reader     TrackReader
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIdentifier enables fingerprint identification for ResolveFile.
func WithIdentifier(id Identifier) ServiceOption {
	return func(s *Service) {
		s.identifier = id
	}
}

// WithTrackReader sets how ResolveFile reads artist and title from a file
// when fingerprinting yields nothing.
func WithTrackReader(r TrackReader) ServiceOption {
	return func(s *Service) {
		s.reader = r
	}
}

// NewService creates a resolution service.
func NewService(catalog *Catalog, lr *LyricsResolver, opts ...ServiceOption) *Service {
	s := &Service{
		catalog: catalog,
		lyrics:  lr,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Catalog exposes the underlying catalog resolver for searches.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// begin attaches a resolution id to ctx's logger.
func (s *Service) begin(ctx context.Context) (context.Context, *Result) {
	res := &Result{ResolutionID: uuid.NewString()}
	logger := log.With().Str("resolution", res.ResolutionID).Logger()
	return logger.WithContext(ctx), res
}

// ResolveFile resolves an audio file. The fingerprint is tried first; when it
// yields no usable recording, artist and title are read from the file.
func (s *Service) ResolveFile(ctx context.Context, path string) (*Result, error) {
	ctx, res := s.begin(ctx)
	logger := logFor(ctx)
	logger.Debug().Str("path", path).Msg("Resolving file")

	if s.identifier != nil {
		fpID, recID := s.identifier.Identify(ctx, path)
		res.FingerprintID = fpID
		if recID != "" {
			rec, ok, err := s.catalog.Recording(ctx, recID)
			if err != nil {
				return nil, err
			}
			if ok {
				logger.Debug().Str("mbid", recID).Msg("Identified by fingerprint")
				return s.expand(ctx, res, rec, "", "")
			}
		}
	}

	artist, title := s.readArtistTitle(ctx, path)
	return s.resolveText(ctx, res, artist, title)
}

func (s *Service) readArtistTitle(ctx context.Context, path string) (string, string) {
	if s.reader != nil {
		artist, title, err := s.reader.ReadArtistTitle(path)
		if err == nil && title != "" {
			return artist, title
		}
		if err != nil {
			logFor(ctx).Debug().Err(err).Str("path", path).Msg("Failed to read tags, using file name")
		}
	}
	base := filepath.Base(path)
	return "", strings.TrimSuffix(base, filepath.Ext(base))
}

// ResolveTrack resolves an explicit (artist, title) pair. artist may be empty.
func (s *Service) ResolveTrack(ctx context.Context, artist, title string) (*Result, error) {
	ctx, res := s.begin(ctx)
	return s.resolveText(ctx, res, artist, title)
}

// ResolveID resolves a known recording id, skipping search.
func (s *Service) ResolveID(ctx context.Context, recordingID string) (*Result, error) {
	ctx, res := s.begin(ctx)

	rec, _, err := s.catalog.Recording(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, res, rec, "", "")
}

func (s *Service) resolveText(ctx context.Context, res *Result, artist, title string) (*Result, error) {
	id, err := s.catalog.ResolveID(ctx, artist, title)
	if err != nil {
		return nil, err
	}

	rec, ok, err := s.catalog.Recording(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		logFor(ctx).Debug().
			Str("artist", artist).
			Str("title", title).
			Msg("No recording found, continuing with query title")
		return s.expand(ctx, res, RecordingSummary{Title: title}, artist, title)
	}
	return s.expand(ctx, res, rec, "", "")
}

// expand fills artists, albums and lyrics for a recording. For a placeholder
// recording, lyrics are searched with the caller's artist and title.
func (s *Service) expand(ctx context.Context, res *Result, rec RecordingSummary, artist, title string) (*Result, error) {
	res.Recording = rec

	artists, err := s.catalog.Artists(ctx, rec.ArtistIDs)
	if err != nil {
		return nil, err
	}
	res.Artists = artists
	res.Albums = s.catalog.Albums(ctx, rec.Releases)

	if res.Found() {
		artist = strings.Join(res.ArtistNames(), ", ")
		title = rec.Title
	}
	if title != "" {
		entry, err := s.lyrics.Lyrics(ctx, artist, title)
		if err != nil {
			return nil, err
		}
		res.Lyrics = entry
	}

	if res.Lyrics.Synced != "" {
		idx, err := lyrics.ParseSynced(res.Lyrics.Synced)
		if err != nil {
			logFor(ctx).Warn().Err(err).Msg("Synchronized lyrics are malformed")
			res.SyncedLyricsErr = err
		} else {
			res.SyncedLyrics = idx
		}
	}

	logFor(ctx).Info().
		Str("mbid", rec.ID).
		Str("title", rec.Title).
		Int("artists", len(res.Artists)).
		Int("albums", len(res.Albums)).
		Bool("lyrics", res.Lyrics.Found()).
		Msg("Resolved metadata")

	return res, nil
}
