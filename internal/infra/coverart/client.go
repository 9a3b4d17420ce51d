// Package coverart downloads release front covers from the Cover Art
// Archive and keeps decoded copies in an on-disk image cache.
package coverart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Cover Art Archive API base URL
	DefaultBaseURL = "https://coverartarchive.org"

	// DefaultRateLimit in requests per second
	DefaultRateLimit = 10

	// DefaultBurst allows a full worker pool to start at once
	DefaultBurst = 5

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// MaxImageSize is the maximum image size to download (10MB)
	MaxImageSize = 10 * 1024 * 1024
)

var (
	// ErrNotFound is returned when the release has no front cover
	ErrNotFound = errors.New("cover art not found")

	// ErrRateLimited is returned when the service rejects the request rate
	ErrRateLimited = errors.New("cover art rate limited")

	// ErrTemporaryFailure is returned for transient server errors
	ErrTemporaryFailure = errors.New("cover art temporary failure")
)

// thumbnailSizes are the pre-rendered front image widths the archive serves.
var thumbnailSizes = []int{250, 500, 1200}

// ThumbnailFor returns the smallest pre-rendered size that is at least size
// pixels, or the largest one available.
func ThumbnailFor(size int) int {
	for _, s := range thumbnailSizes {
		if size <= s {
			return s
		}
	}
	return thumbnailSizes[len(thumbnailSizes)-1]
}

// Client is a Cover Art Archive client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets the rate limit in requests per second. Zero or less
// disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), DefaultBurst)
	}
}

// New creates a Cover Art Archive client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: "stellar-meta",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchFront downloads the raw front image of a release at the nearest
// pre-rendered size.
func (c *Client) FetchFront(ctx context.Context, releaseID string, size int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/release/%s/front-%d", c.baseURL, releaseID, ThumbnailFor(size))

	log.Debug().
		Str("release", releaseID).
		Str("url", url).
		Msg("Fetching cover art")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		log.Warn().Str("release", releaseID).Msg("Cover art rate limit exceeded")
		return nil, ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		log.Warn().Str("release", releaseID).Int("status", resp.StatusCode).Msg("Cover art temporary error")
		return nil, ErrTemporaryFailure
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}
