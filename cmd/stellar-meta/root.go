package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-metadata/internal/config"
	"github.com/edumarques81/stellar-metadata/internal/version"
)

// globals holds the persistent flags and the configuration they select.
type globals struct {
	configPath string
	debug      bool
	cfg        config.Config
}

func newRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           version.Name,
		Short:         "Resolve tracks to MusicBrainz metadata, lyrics and cover art",
		Version:       version.GetInfo().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd.ErrOrStderr(), g.debug)

			cfg, err := config.LoadConfigFile(g.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			g.cfg = cfg

			log.Debug().
				Str("cache_backend", cfg.CacheBackend).
				Str("cache_path", cfg.CachePath).
				Str("cover_cache_dir", cfg.CoverCacheDir).
				Float64("rate_limit", cfg.RateLimit).
				Bool("fingerprinting", cfg.AcoustIDAPIKey != "").
				Msg("Configuration")
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default: search standard locations)")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newResolveCommand(g),
		newSearchCommand(g),
		newLyricsCommand(g),
		newCoversCommand(g),
		newNowPlayingCommand(g),
		newCacheCommand(g),
	)

	return root
}

func setupLogging(out io.Writer, debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
}
