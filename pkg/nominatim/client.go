// Package nominatim is a polite client for the OSM Nominatim search
// API: per-client rate limiting with jitter, linear-backoff retries on
// transient failures, and structured address component extraction.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/taxroll-cli/internal/resilience"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

var clientSeq atomic.Int64

// Address holds the four components extracted from a search response.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Complete reports whether all four components were present.
func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.State != "" && a.Zip != ""
}

// Config configures a Client. UserAgent is required: Nominatim's usage
// policy rejects anonymous clients.
type Config struct {
	UserAgent string
	BaseURL   string
	MinDelay  time.Duration
	MaxJitter time.Duration
	Timeout   time.Duration
	Retry     resilience.RetryPolicy
}

// Client is a single-caller Nominatim client. Each worker must hold its
// own instance; the rate limit and the randomized User-Agent suffix are
// both per instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *Limiter
	retry      resilience.RetryPolicy
}

// NewClient creates a client with a unique User-Agent derived from
// cfg.UserAgent. Returns an error if no user agent is configured.
func NewClient(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, eris.New("nominatim: user agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 1100 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  fmt.Sprintf("%s_%d_%04d", cfg.UserAgent, clientSeq.Add(1), rand.IntN(10000)),
		limiter:    NewLimiter(cfg.MinDelay, cfg.MaxJitter),
		retry:      cfg.Retry,
	}, nil
}

// searchResult is one entry of a /search jsonv2 response.
type searchResult struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		HouseNumber   string `json:"house_number"`
		Road          string `json:"road"`
		Street        string `json:"street"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		State         string `json:"state"`
		Postcode      string `json:"postcode"`
	} `json:"address"`
}

// Search geocodes a free-form address. A nil result with a nil error
// means the service returned no usable match; errors are call failures
// after the retry budget is spent.
func (c *Client) Search(ctx context.Context, address string) (*Address, error) {
	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("nominatim", "search")
	}

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*Address, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.searchOnce(ctx, address)
	})
}

func (c *Client) searchOnce(ctx context.Context, address string) (*Address, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	q.Set("limit", "1")
	q.Set("accept-language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: search request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("nominatim: search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, eris.Wrap(err, "nominatim: decode response")
	}
	if len(results) == 0 {
		zap.L().Debug("nominatim: no match", zap.String("query", address))
		return nil, nil
	}

	extracted := extract(results[0])
	if !extracted.Complete() {
		// A partial match propagates as a non-match so the caller can
		// fall through to the next strategy.
		zap.L().Debug("nominatim: partial match discarded",
			zap.String("query", address),
			zap.String("display_name", results[0].DisplayName),
		)
		return nil, nil
	}
	return &extracted, nil
}

// extract maps a Nominatim address object onto the four components.
// Street joins house number and road, falling back to whichever is
// present; city takes the first populated locality field in priority
// order city, town, village, suburb, neighbourhood.
func extract(r searchResult) Address {
	a := r.Address

	road := a.Road
	if road == "" {
		road = a.Street
	}
	street := strings.TrimSpace(a.HouseNumber + " " + road)

	city := a.City
	for _, alt := range []string{a.Town, a.Village, a.Suburb, a.Neighbourhood} {
		if city != "" {
			break
		}
		city = alt
	}

	return Address{
		Street: street,
		City:   strings.TrimSpace(city),
		State:  strings.TrimSpace(a.State),
		Zip:    strings.TrimSpace(a.Postcode),
	}
}
