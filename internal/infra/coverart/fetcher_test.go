package coverart_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/edumarques81/stellar-metadata/internal/infra/coverart"
)

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// coverServer serves a 600x300 jpeg for "valid-id", drops the connection
// for "network-error-id" and 404s everything else.
func coverServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	data := jpegBytes(t, 600, 300)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/release/valid-id/front-"):
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(data)
		case strings.HasPrefix(r.URL.Path, "/release/network-error-id/"):
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer cannot hijack")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			conn.Close()
		case strings.HasPrefix(r.URL.Path, "/release/garbage-id/"):
			w.Write([]byte("not an image"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newFetcher(t *testing.T, server *httptest.Server) *coverart.Fetcher {
	t.Helper()
	client := coverart.New(coverart.WithBaseURL(server.URL), coverart.WithRateLimit(0))
	return coverart.NewFetcher(client, t.TempDir())
}

func TestFetchAllPartialFailure(t *testing.T) {
	var hits atomic.Int32
	fetcher := newFetcher(t, coverServer(t, &hits))

	got := fetcher.FetchAll(context.Background(), []string{"valid-id", "network-error-id", "missing-id", "garbage-id"}, 250, 2)

	if len(got) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(got))
	}
	if got["valid-id"] == nil {
		t.Fatal("Expected valid-id to decode")
	}
	for _, id := range []string{"network-error-id", "missing-id", "garbage-id"} {
		if img, ok := got[id]; !ok || img != nil {
			t.Errorf("Expected %s to map to nil, got %v (present=%v)", id, img, ok)
		}
	}

	b := got["valid-id"].Bounds()
	if b.Dx() != 250 || b.Dy() != 125 {
		t.Errorf("Expected 250x125 after scaling, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestFetchUsesDiskCache(t *testing.T) {
	var hits atomic.Int32
	fetcher := newFetcher(t, coverServer(t, &hits))
	ctx := context.Background()

	if _, err := fetcher.Fetch(ctx, "valid-id", 250); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, err := os.Stat(fetcher.CachePath("valid-id", 250)); err != nil {
		t.Fatalf("Expected cached file: %v", err)
	}

	img, err := fetcher.Fetch(ctx, "valid-id", 250)
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if img.Bounds().Dx() != 250 {
		t.Errorf("Expected cached image width 250, got %d", img.Bounds().Dx())
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("Expected 1 upstream request, got %d", n)
	}

	// A different size is a different cache entry.
	if _, err := fetcher.Fetch(ctx, "valid-id", 100); err != nil {
		t.Fatalf("Fetch at 100 failed: %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("Expected 2 upstream requests, got %d", n)
	}
}

func TestFetchAllDeduplicates(t *testing.T) {
	var hits atomic.Int32
	fetcher := newFetcher(t, coverServer(t, &hits))

	got := fetcher.FetchAll(context.Background(), []string{"valid-id", "valid-id"}, 250, 5)
	if len(got) != 1 || got["valid-id"] == nil {
		t.Fatalf("Unexpected results: %v", got)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("Expected 1 upstream request, got %d", n)
	}
}

func TestFetchRejectsPathLikeIDs(t *testing.T) {
	var hits atomic.Int32
	fetcher := newFetcher(t, coverServer(t, &hits))

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if _, err := fetcher.Fetch(context.Background(), id, 250); err == nil {
			t.Errorf("Expected error for id %q", id)
		}
	}
	if hits.Load() != 0 {
		t.Error("Expected no upstream requests")
	}
}

func TestThumbnailFor(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{100, 250},
		{250, 250},
		{251, 500},
		{500, 500},
		{800, 1200},
		{4000, 1200},
	}

	for _, tt := range tests {
		if got := coverart.ThumbnailFor(tt.size); got != tt.want {
			t.Errorf("ThumbnailFor(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, coverart.ErrNotFound},
		{http.StatusTooManyRequests, coverart.ErrRateLimited},
		{http.StatusServiceUnavailable, coverart.ErrTemporaryFailure},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/release/rel-1/front-500" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			w.WriteHeader(tt.status)
		}))

		client := coverart.New(coverart.WithBaseURL(server.URL), coverart.WithRateLimit(0))
		_, err := client.FetchFront(context.Background(), "rel-1", 500)
		if err != tt.want {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
		server.Close()
	}
}
