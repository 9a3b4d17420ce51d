package musicbrainz_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
	"github.com/edumarques81/stellar-metadata/internal/infra/musicbrainz"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *musicbrainz.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return musicbrainz.New(
		musicbrainz.WithBaseURL(server.URL),
		musicbrainz.WithUserAgent("test/1.0 ( test@example.com )"),
		musicbrainz.WithRateLimit(0),
	)
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"not found", http.StatusNotFound, musicbrainz.ErrNotFound},
		{"bad id", http.StatusBadRequest, musicbrainz.ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, musicbrainz.ErrRateLimited},
		{"bad gateway", http.StatusBadGateway, musicbrainz.ErrTemporaryFailure},
		{"unavailable", http.StatusServiceUnavailable, musicbrainz.ErrTemporaryFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(tt.status)
			})

			_, err := client.GetRecording(context.Background(), "rec-1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if got, want := errors.Is(err, metadata.ErrNotFound), tt.wantErr == musicbrainz.ErrNotFound; got != want {
				t.Errorf("Expected metadata.ErrNotFound match %v, got %v", want, got)
			}
		})
	}
}

func TestClientRetriesOnceAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"artists": [{"id": "a1", "name": "Artist"}]}`))
	})

	hits, err := client.SearchArtists(context.Background(), "Artist", 10)
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a1" {
		t.Errorf("Unexpected hits: %+v", hits)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 requests, got %d", calls.Load())
	}
}

func TestClientSendsUserAgent(t *testing.T) {
	var ua, format string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		format = r.URL.Query().Get("fmt")
		w.Write([]byte(`{"releases": []}`))
	})

	if _, err := client.SearchReleases(context.Background(), "x", 5); err != nil {
		t.Fatal(err)
	}
	if ua != "test/1.0 ( test@example.com )" {
		t.Errorf("Unexpected User-Agent: %q", ua)
	}
	if format != "json" {
		t.Errorf("Expected fmt=json, got %q", format)
	}
}

func TestClientContextCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.GetArtist(ctx, "a1"); err == nil {
		t.Error("Expected error for canceled context")
	}
}
