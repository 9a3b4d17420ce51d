package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

// resolveOutput is the JSON printed by resolve and nowplaying.
type resolveOutput struct {
	*metadata.Result
	SyncedLyricsError string            `json:"synced_lyrics_error,omitempty"`
	Covers            map[string]string `json:"covers,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newResolveCommand(g *globals) *cobra.Command {
	var (
		file, artist, title, id string
		covers, writeTags       bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a file, an artist/title pair or a recording id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modes := 0
			for _, set := range []bool{file != "", title != "", id != ""} {
				if set {
					modes++
				}
			}
			if modes != 1 {
				return errors.New("exactly one of --file, --title or --id is required")
			}
			if artist != "" && title == "" {
				return errors.New("--artist requires --title")
			}
			if writeTags && file == "" {
				return errors.New("--write-tags requires --file")
			}

			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			var res *metadata.Result
			switch {
			case file != "":
				if _, err := os.Stat(file); err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				res, err = a.service.ResolveFile(ctx, file)
			case id != "":
				res, err = a.service.ResolveID(ctx, id)
			default:
				res, err = a.service.ResolveTrack(ctx, artist, title)
			}
			if err != nil {
				return err
			}

			out := resolveOutput{Result: res}
			if res.SyncedLyricsErr != nil {
				out.SyncedLyricsError = res.SyncedLyricsErr.Error()
			}
			if covers {
				out.Covers = a.fetchCovers(ctx, res.ReleaseIDs(), g.cfg.CoverSize, g.cfg.CoverConcurrency)
			}
			if writeTags {
				if !res.Found() {
					log.Warn().Str("path", file).Msg("Nothing resolved, tags left unchanged")
				} else if err := a.writer.WriteResolved(file, res); err != nil {
					return err
				}
			}

			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Audio file to fingerprint or read tags from")
	cmd.Flags().StringVarP(&artist, "artist", "a", "", "Artist name")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Track title")
	cmd.Flags().StringVar(&id, "id", "", "MusicBrainz recording id")
	cmd.Flags().BoolVar(&covers, "covers", false, "Fetch cover art for the resolved albums")
	cmd.Flags().BoolVar(&writeTags, "write-tags", false, "Write the resolved metadata into --file")

	return cmd
}

// fetchCovers returns release id to cached image path, empty for failures.
func (a *app) fetchCovers(ctx context.Context, ids []string, size, concurrency int) map[string]string {
	images := a.covers.FetchAll(ctx, ids, size, concurrency)
	paths := make(map[string]string, len(images))
	for id, img := range images {
		if img == nil {
			paths[id] = ""
			continue
		}
		paths[id] = a.covers.CachePath(id, size)
	}
	return paths
}

func newSearchCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalog without caching",
	}

	run := func(fn func(ctx context.Context, c *metadata.Catalog, term string, w *tabwriter.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if err := fn(cmd.Context(), a.service.Catalog(), strings.Join(args, " "), w); err != nil {
				return err
			}
			return w.Flush()
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "recordings TERM",
			Short: "Search recordings",
			Args:  cobra.MinimumNArgs(1),
			RunE: run(func(ctx context.Context, c *metadata.Catalog, term string, w *tabwriter.Writer) error {
				hits, err := c.SearchRecordings(ctx, term)
				if err != nil {
					return err
				}
				for _, h := range hits {
					fmt.Fprintf(w, "%s\t%s\t%s\n", h.Artist, h.Title, h.ID)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "artists TERM",
			Short: "Search artists",
			Args:  cobra.MinimumNArgs(1),
			RunE: run(func(ctx context.Context, c *metadata.Catalog, term string, w *tabwriter.Writer) error {
				hits, err := c.SearchArtists(ctx, term)
				if err != nil {
					return err
				}
				for _, h := range hits {
					fmt.Fprintf(w, "%s\t%s\n", h.Name, h.ID)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "albums TERM",
			Short: "Search albums",
			Args:  cobra.MinimumNArgs(1),
			RunE: run(func(ctx context.Context, c *metadata.Catalog, term string, w *tabwriter.Writer) error {
				hits, err := c.SearchAlbums(ctx, term)
				if err != nil {
					return err
				}
				for _, h := range hits {
					fmt.Fprintf(w, "%s\t%s\t%s\n", h.Artist, h.Title, h.ID)
				}
				return nil
			}),
		},
	)

	return cmd
}

func newCoversCommand(g *globals) *cobra.Command {
	var size, concurrency int

	cmd := &cobra.Command{
		Use:   "covers ID...",
		Short: "Download front covers for release ids into the image cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= 0 {
				size = g.cfg.CoverSize
			}
			if concurrency <= 0 {
				concurrency = g.cfg.CoverConcurrency
			}

			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			paths := a.fetchCovers(cmd.Context(), args, size, concurrency)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printed, failed := 0, 0
			for _, id := range args {
				path, ok := paths[id]
				if !ok {
					continue
				}
				delete(paths, id)
				printed++
				if path == "" {
					failed++
					path = "unavailable"
				}
				fmt.Fprintf(w, "%s\t%s\n", id, path)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed == printed {
				return fmt.Errorf("no covers available for %d release(s)", failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "Image edge in pixels (default from config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel downloads (default from config)")

	return cmd
}

func newCacheCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the metadata cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show entry counts per cache table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.cache.Stats()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "backend\t%s\n", g.cfg.CacheBackend)
			fmt.Fprintf(w, "queries\t%d\n", s.Queries)
			fmt.Fprintf(w, "not found\t%d\n", s.NotFound)
			fmt.Fprintf(w, "recordings\t%d\n", s.Recordings)
			fmt.Fprintf(w, "artists\t%d\n", s.Artists)
			fmt.Fprintf(w, "albums\t%d\n", s.Albums)
			fmt.Fprintf(w, "lyrics\t%d\n", s.Lyrics)
			return w.Flush()
		},
	})

	return cmd
}
