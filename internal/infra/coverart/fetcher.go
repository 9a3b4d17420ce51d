package coverart

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSize is the requested edge length in pixels
	DefaultSize = 250

	// DefaultConcurrency bounds outstanding downloads in FetchAll
	DefaultConcurrency = 5
)

// Fetcher resolves release ids to decoded cover images, reading through a
// directory of cached PNG files.
type Fetcher struct {
	client *Client
	dir    string
}

// NewFetcher creates a fetcher caching images under dir.
func NewFetcher(client *Client, dir string) *Fetcher {
	if dir == "" {
		dir = filepath.Join("data", "covers")
	}
	return &Fetcher{client: client, dir: dir}
}

// Dir returns the image cache directory.
func (f *Fetcher) Dir() string {
	return f.dir
}

// CachePath returns where the image for (releaseID, size) is stored.
func (f *Fetcher) CachePath(releaseID string, size int) string {
	return filepath.Join(f.dir, releaseID+"_"+strconv.Itoa(size)+".png")
}

// Fetch returns the cover for one release, from disk when present.
func (f *Fetcher) Fetch(ctx context.Context, releaseID string, size int) (image.Image, error) {
	if releaseID == "" || strings.ContainsAny(releaseID, `/\`) || releaseID == "." || releaseID == ".." {
		return nil, fmt.Errorf("invalid release id %q", releaseID)
	}
	if size <= 0 {
		size = DefaultSize
	}

	path := f.CachePath(releaseID, size)
	if img, err := loadImage(path); err == nil {
		return img, nil
	}

	data, err := f.client.FetchFront(ctx, releaseID, size)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	log.Debug().
		Str("release", releaseID).
		Str("format", format).
		Int("size", size).
		Msg("Decoded cover art")

	img = fit(img, size)

	if err := f.store(path, img); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to cache cover art")
	}
	return img, nil
}

// FetchAll downloads covers for every id with at most concurrency requests
// in flight. A failed id maps to nil and does not affect the others.
func (f *Fetcher) FetchAll(ctx context.Context, releaseIDs []string, size, concurrency int) map[string]image.Image {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var (
		mu      sync.Mutex
		results = make(map[string]image.Image, len(releaseIDs))
		g       errgroup.Group
	)
	g.SetLimit(concurrency)

	for _, id := range releaseIDs {
		mu.Lock()
		_, seen := results[id]
		if !seen {
			results[id] = nil
		}
		mu.Unlock()
		if seen {
			continue
		}

		g.Go(func() error {
			img, err := f.Fetch(ctx, id, size)
			if err != nil {
				log.Debug().Err(err).Str("release", id).Msg("Cover art unavailable")
				return nil
			}
			mu.Lock()
			results[id] = img
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	return results
}

func (f *Fetcher) store(path string, img image.Image) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create cover dir: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".cover-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	return img, err
}

// fit scales src down to fit within size x size, keeping its aspect ratio.
// Smaller images are converted to RGBA unchanged.
func fit(src image.Image, size int) image.Image {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	newW, newH := srcW, srcH
	if srcW > size || srcH > size {
		if srcW > srcH {
			newW = size
			newH = max(1, srcH*size/srcW)
		} else {
			newH = size
			newW = max(1, srcW*size/srcH)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	if newW == srcW && newH == srcH {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
