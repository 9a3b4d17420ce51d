package main

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata/internal/config"
	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
	"github.com/edumarques81/stellar-metadata/internal/infra/acoustid"
	"github.com/edumarques81/stellar-metadata/internal/infra/cache"
	"github.com/edumarques81/stellar-metadata/internal/infra/coverart"
	"github.com/edumarques81/stellar-metadata/internal/infra/lrclib"
	"github.com/edumarques81/stellar-metadata/internal/infra/mpd"
	"github.com/edumarques81/stellar-metadata/internal/infra/musicbrainz"
	"github.com/edumarques81/stellar-metadata/internal/infra/tags"
	"github.com/edumarques81/stellar-metadata/internal/version"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg     config.Config
	cache   *metadata.Cache
	service *metadata.Service
	lyrics  *metadata.LyricsResolver
	covers  *coverart.Fetcher
	writer  *tags.Writer
	closers []func() error
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, writer: tags.NewWriter()}

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.cache = metadata.NewCache(store)

	ua := version.UserAgent(cfg.Contact)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	mb := musicbrainz.New(
		musicbrainz.WithBaseURL(cfg.MusicBrainzURL),
		musicbrainz.WithUserAgent(ua),
		musicbrainz.WithHTTPClient(httpClient),
		musicbrainz.WithRateLimit(cfg.RateLimit),
	)
	lrc := lrclib.New(
		lrclib.WithBaseURL(cfg.LRCLibURL),
		lrclib.WithUserAgent(ua),
		lrclib.WithHTTPClient(httpClient),
	)

	catalog := metadata.NewCatalog(mb, a.cache,
		metadata.WithPolicy(cfg.Policy()),
		metadata.WithSearchLimit(cfg.SearchLimit),
	)
	a.lyrics = metadata.NewLyricsResolver(lrc, a.cache)

	opts := []metadata.ServiceOption{metadata.WithTrackReader(tags.NewReader())}
	if cfg.AcoustIDAPIKey != "" {
		fp := acoustid.NewFpcalc(cfg.FpcalcPath)
		client := acoustid.NewClient(cfg.AcoustIDAPIKey,
			acoustid.WithBaseURL(cfg.AcoustIDURL),
			acoustid.WithUserAgent(ua),
			acoustid.WithHTTPClient(httpClient),
		)
		opts = append(opts, metadata.WithIdentifier(acoustid.NewIdentifier(fp, client)))
		if !fp.Available() {
			log.Debug().Msg("fpcalc not found, fingerprinting disabled")
		}
	} else {
		log.Debug().Msg("No AcoustID key configured, fingerprinting disabled")
	}
	a.service = metadata.NewService(catalog, a.lyrics, opts...)

	a.covers = coverart.NewFetcher(
		coverart.New(
			coverart.WithBaseURL(cfg.CoverArtURL),
			coverart.WithUserAgent(ua),
			coverart.WithHTTPClient(httpClient),
		),
		cfg.CoverCacheDir,
	)

	return a, nil
}

func (a *app) openStore() (metadata.Store, error) {
	switch a.cfg.CacheBackend {
	case config.BackendSQLite:
		path := a.cfg.CachePath
		if path == config.DefaultConfig().CachePath {
			path = ""
		}
		store := cache.NewSQLiteStore(path)
		if err := store.Open(); err != nil {
			log.Warn().Err(err).Str("path", store.Path()).Msg("Metadata cache unavailable, using an in-memory cache")
			return cache.NewMemoryStore(), nil
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return cache.NewJSONFileStore(a.cfg.CachePath), nil
	}
}

func (a *app) mpdClient() *mpd.Client {
	client := mpd.NewClient(a.cfg.MPD.Host, a.cfg.MPD.Port, a.cfg.MPD.Password)
	a.closers = append(a.closers, client.Close)
	return client
}

// Close flushes the cache and releases every resource in reverse order.
func (a *app) Close() {
	if err := a.cache.Flush(); err != nil {
		log.Warn().Err(err).Msg("Failed to flush metadata cache")
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Debug().Err(err).Msg("Close failed")
		}
	}
}
