package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-metadata/internal/domain/lyrics"
	"github.com/edumarques81/stellar-metadata/internal/infra/mpd"
	"github.com/edumarques81/stellar-metadata/internal/infra/tags"
)

// followInterval is how often the playback position is polled.
const followInterval = 250 * time.Millisecond

// nowPlaying is the subset of the MPD client lyrics --follow needs.
type nowPlaying interface {
	NowPlaying() (*mpd.Track, error)
	Watch(subsystems ...string) (<-chan string, error)
}

func newLyricsCommand(g *globals) *cobra.Command {
	var (
		artist, title  string
		follow, synced bool
	)

	cmd := &cobra.Command{
		Use:   "lyrics",
		Short: "Look up lyrics, optionally following MPD playback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if title == "" && !follow {
				return errors.New("--title is required unless --follow is set")
			}

			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var player *mpd.Client
			var file string
			if follow {
				player = a.mpdClient()
				track, err := player.NowPlaying()
				if err != nil {
					return err
				}
				if !track.Playing() {
					return errors.New("MPD is not playing anything")
				}
				file = track.File
				if title == "" {
					artist, title = trackArtistTitle(track)
				}
			}

			entry, err := a.lyrics.Lyrics(ctx, artist, title)
			if err != nil {
				return err
			}
			if !entry.Found() {
				return fmt.Errorf("no lyrics found for %q", strings.TrimSpace(artist+" "+title))
			}

			if !follow {
				if synced {
					fmt.Fprintln(out, entry.Synced)
				} else {
					fmt.Fprintln(out, entry.Plain)
				}
				return nil
			}

			idx, err := lyrics.ParseSynced(entry.Synced)
			if err != nil {
				return err
			}
			return followLyrics(ctx, out, player, idx, file)
		},
	}

	cmd.Flags().StringVarP(&artist, "artist", "a", "", "Artist name")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Track title (default: MPD current song with --follow)")
	cmd.Flags().BoolVar(&follow, "follow", false, "Print each synced line as MPD reaches it")
	cmd.Flags().BoolVar(&synced, "synced", false, "Print the raw synced lyrics instead of plain text")

	return cmd
}

// trackArtistTitle prefers MPD's tags and falls back to the file name.
func trackArtistTitle(t *mpd.Track) (string, string) {
	if t.Title != "" {
		return t.Artist, tags.StripArtistPrefix(t.Artist, t.Title)
	}
	return tags.ParseFilename(t.File)
}

// followLyrics prints the current line whenever it changes and returns when
// the song changes or ctx is done.
func followLyrics(ctx context.Context, out io.Writer, player nowPlaying, idx *lyrics.Index, file string) error {
	events, err := player.Watch("player")
	if err != nil {
		log.Debug().Err(err).Msg("MPD watcher unavailable, polling only")
	}

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	last := -1.0
	check := func() (bool, error) {
		track, err := player.NowPlaying()
		if err != nil {
			return false, err
		}
		if track.File != file {
			log.Info().Str("file", track.File).Msg("Song changed, stopping")
			return false, nil
		}
		if ts := lyrics.ClosestTimestamp(track.Elapsed, idx.Timestamps); ts != last {
			last = ts
			if line, ok := idx.Lines[ts]; ok {
				fmt.Fprintln(out, line)
			}
		}
		return true, nil
	}

	for {
		if ok, err := check(); !ok || err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case <-ticker.C:
		}
	}
}

func newNowPlayingCommand(g *globals) *cobra.Command {
	var covers bool

	cmd := &cobra.Command{
		Use:   "nowplaying",
		Short: "Resolve the song MPD is playing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			track, err := a.mpdClient().NowPlaying()
			if err != nil {
				return err
			}
			if !track.Playing() {
				return errors.New("MPD is not playing anything")
			}

			ctx := cmd.Context()
			var out resolveOutput
			if g.cfg.MPD.MusicDir != "" {
				out.Result, err = a.service.ResolveFile(ctx, track.Path(g.cfg.MPD.MusicDir))
			} else {
				artist, title := trackArtistTitle(track)
				out.Result, err = a.service.ResolveTrack(ctx, artist, title)
			}
			if err != nil {
				return err
			}

			if out.SyncedLyricsErr != nil {
				out.SyncedLyricsError = out.SyncedLyricsErr.Error()
			}
			if covers {
				out.Covers = a.fetchCovers(ctx, out.ReleaseIDs(), g.cfg.CoverSize, g.cfg.CoverConcurrency)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&covers, "covers", false, "Fetch cover art for the resolved albums")

	return cmd
}
