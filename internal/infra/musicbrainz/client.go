// Package musicbrainz is a MusicBrainz web service client that maps catalog
// responses to metadata summaries.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

const (
	// DefaultBaseURL is the MusicBrainz API base URL
	DefaultBaseURL = "https://musicbrainz.org/ws/2"

	// DefaultRateLimit is 1 request per second (MusicBrainz guideline)
	DefaultRateLimit = 1.0

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// maxRetryAfter caps how long a Retry-After header can make us wait.
	maxRetryAfter = 10 * time.Second
)

var (
	// ErrNotFound indicates the entity does not exist (permanent failure).
	// It matches metadata.ErrNotFound so the resolver caches the answer.
	ErrNotFound = fmt.Errorf("musicbrainz entity %w", metadata.ErrNotFound)

	// ErrTemporaryFailure indicates a temporary failure (should retry)
	ErrTemporaryFailure = errors.New("temporary failure")

	// ErrRateLimited indicates rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
)

// Client is a MusicBrainz API client. It implements metadata.CatalogClient.
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

// WithUserAgent sets the User-Agent header. MusicBrainz rejects anonymous
// clients.
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

// WithRateLimit sets the sustained request rate. Zero or less disables
// pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// New creates a MusicBrainz client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: "stellar-meta",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get fetches path with params and decodes the JSON body into out. A 429 or
// 503 is retried once after the server's Retry-After.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("fmt", "json")
	reqURL := c.baseURL + path + "?" + params.Encode()

	log.Debug().Str("url", reqURL).Msg("MusicBrainz request")

	resp, err := c.doWithRetry(ctx, reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusNotFound, http.StatusBadRequest:
		return ErrNotFound
	case http.StatusTooManyRequests:
		log.Warn().Msg("MusicBrainz rate limit exceeded")
		return ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		log.Warn().Int("status", resp.StatusCode).Msg("MusicBrainz temporary error")
		return ErrTemporaryFailure
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, reqURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	return resp, nil
}

func (c *Client) doWithRetry(ctx context.Context, reqURL string) (*http.Response, error) {
	resp, err := c.do(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return resp, nil
	}
	resp.Body.Close()

	wait := retryAfter(resp.Header.Get("Retry-After"))
	log.Debug().Int("status", resp.StatusCode).Dur("wait", wait).Msg("MusicBrainz asked to retry")

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}

	return c.do(ctx, reqURL)
}

// retryAfter parses a Retry-After value in seconds, defaulting to 2s.
func retryAfter(v string) time.Duration {
	wait := 2 * time.Second
	if v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}
	return wait
}

// escapeQuery escapes special characters in Lucene query.
func escapeQuery(s string) string {
	// Escape Lucene special characters: + - && || ! ( ) { } [ ] ^ " ~ * ? : \ /
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		`+`, `\+`,
		`-`, `\-`,
		`!`, `\!`,
		`(`, `\(`,
		`)`, `\)`,
		`{`, `\{`,
		`}`, `\}`,
		`[`, `\[`,
		`]`, `\]`,
		`^`, `\^`,
		`~`, `\~`,
		`*`, `\*`,
		`?`, `\?`,
		`:`, `\:`,
		`/`, `\/`,
	)
	return replacer.Replace(s)
}
