// Package lrclib searches LRCLib for plain and synchronized lyrics.
package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

const (
	// DefaultBaseURL is the LRCLib base URL
	DefaultBaseURL = "https://lrclib.net"

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 10 * time.Second
)

// ErrTemporaryFailure indicates a 5xx response.
var ErrTemporaryFailure = errors.New("temporary failure")

var _ metadata.LyricsClient = (*Client)(nil)

// Client is an LRCLib search client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryWait  time.Duration
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

// WithRetryWait sets the pause before retrying a transient network error.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) {
		c.retryWait = d
	}
}

// New creates an LRCLib client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: "stellar-meta",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(5), 5),
		retryWait: 2 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type searchResult struct {
	PlainLyrics  *string `json:"plainLyrics"`
	SyncedLyrics *string `json:"syncedLyrics"`
}

// Search returns every result for a free-text query, in service order.
// Retries once on transient network errors.
func (c *Client) Search(ctx context.Context, query string) ([]metadata.LyricsCandidate, error) {
	results, err := c.doSearch(ctx, query)
	if err == nil {
		return results, nil
	}

	// API errors would fail identically on retry.
	if !isTransient(err) {
		return nil, err
	}

	log.Debug().Err(err).Str("query", query).Msg("LRCLib request failed, retrying")

	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(c.retryWait):
	}
	return c.doSearch(ctx, query)
}

func isTransient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) doSearch(ctx context.Context, query string) ([]metadata.LyricsCandidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/api/search?%s", c.baseURL, url.Values{"q": {query}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lrclib request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 500:
		log.Warn().Int("status", resp.StatusCode).Msg("LRCLib temporary error")
		return nil, ErrTemporaryFailure
	default:
		return nil, fmt.Errorf("lrclib returned status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode lrclib response: %w", err)
	}

	out := make([]metadata.LyricsCandidate, 0, len(results))
	for _, r := range results {
		out = append(out, metadata.LyricsCandidate{
			Plain:  deref(r.PlainLyrics),
			Synced: deref(r.SyncedLyrics),
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
