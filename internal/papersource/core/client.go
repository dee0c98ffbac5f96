// Package core provides a client for the CORE v3 works search API.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/researchfeed/paper-feed-service/internal/domain"
	"github.com/researchfeed/paper-feed-service/internal/papersource"
)

const (
	// DefaultBaseURL is the default CORE API base URL.
	DefaultBaseURL = "https://api.core.ac.uk/v3"

	// DefaultRateLimit is the default rate limit (2 requests per second).
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the default number of records per search page.
	DefaultPageSize = 100

	// searchWorksPath is the works search endpoint path.
	searchWorksPath = "/search/works"

	// sourceName is the human-readable name for this source.
	sourceName = "CORE"
)

// Config holds configuration for the CORE client.
type Config struct {
	// BaseURL is the CORE API base URL.
	BaseURL string

	// APIKey is the CORE API key, sent as a bearer token.
	// Required for all requests.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum retry attempts for 429/5xx responses.
	MaxRetries int

	// PageSize is the default number of records per search page.
	PageSize int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
}

// Client queries the CORE v3 works search API.
type Client struct {
	config     Config
	httpClient *papersource.HTTPClient
}

// New creates a new CORE client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersource.NewHTTPClient(papersource.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		AuthHeader: "Authorization",
		AuthValue:  "Bearer " + cfg.APIKey,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new CORE client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersource.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// BuildRecentQuery returns the works query selecting papers published in or
// after the year of (now - lookbackDays), restricted to records carrying an
// abstract.
func BuildRecentQuery(now time.Time, lookbackDays int) string {
	start := now.AddDate(0, 0, -lookbackDays)
	return fmt.Sprintf("yearPublished>=%d AND _exists_:abstract", start.Year())
}

// SearchWorks runs a works search with the given query and pagination.
// Non-2xx responses are returned as *domain.ExternalAPIError so callers can
// treat them as transient and move on.
func (c *Client) SearchWorks(ctx context.Context, query string, limit, offset int) (*SearchResponse, error) {
	if limit <= 0 {
		limit = c.config.PageSize
	}

	searchURL, err := c.buildSearchURL(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			sourceName,
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Parse the JSON response (limit body to 10MB).
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &searchResp, nil
}

// buildSearchURL constructs the works search URL.
func (c *Client) buildSearchURL(query string, limit, offset int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + searchWorksPath

	urlQuery := url.Values{}
	urlQuery.Set("q", query)
	urlQuery.Set("limit", strconv.Itoa(limit))
	urlQuery.Set("offset", strconv.Itoa(offset))

	baseURL.RawQuery = urlQuery.Encode()
	return baseURL.String(), nil
}
