package acoustid

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
)

const (
	// DefaultBaseURL is the AcoustID web service URL
	DefaultBaseURL = "https://api.acoustid.org/v2"

	// DefaultRateLimit is the documented 3 requests per second
	DefaultRateLimit = 3

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 15 * time.Second
)

var (
	// ErrNoMatch is returned when no matching recordings are found
	ErrNoMatch = errors.New("no matching recordings found")

	// ErrWebService is returned when the service reports an error
	ErrWebService = errors.New("acoustid web service error")

	// ErrNoAPIKey is returned when no application key is configured
	ErrNoAPIKey = errors.New("acoustid api key not configured")
)

// Match is one lookup result.
type Match struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Recordings []struct {
		ID string `json:"id"`
	} `json:"recordings"`
}

type lookupResponse struct {
	Status string  `json:"status"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Results []Match `json:"results"`
}

// Client is an AcoustID lookup client.
type Client struct {
	baseURL    string
	apiKey     string
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

// NewClient creates an AcoustID client for the given application key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
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

// Lookup submits a fingerprint and returns matches best first.
func (c *Client) Lookup(ctx context.Context, fp *Fingerprint) ([]Match, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{
		"client":      {c.apiKey},
		"duration":    {strconv.Itoa(int(fp.Duration))},
		"fingerprint": {fp.Fingerprint},
		"meta":        {"recordings"},
		"format":      {"json"},
	}

	// Fingerprints are too long for a query string.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/lookup", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: status %d: parse response: %v", ErrWebService, resp.StatusCode, err)
	}

	if body.Status != "ok" {
		msg := "unknown error"
		if body.Error != nil {
			msg = body.Error.Message
		}
		log.Warn().Int("status", resp.StatusCode).Str("error", msg).Msg("AcoustID lookup rejected")
		return nil, fmt.Errorf("%w: %s", ErrWebService, msg)
	}

	if len(body.Results) == 0 {
		return nil, ErrNoMatch
	}
	return body.Results, nil
}
