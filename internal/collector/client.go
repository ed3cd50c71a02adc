// Package collector polls external data sources and writes raw payloads
// and first-order metrics into the stores. Collectors never score
// anything; the derive and scorecard packages consume what they write.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const userAgent = "chainhealth/1.0"

// Client is a rate-limited JSON HTTP client shared by the collectors.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient builds a client for one upstream API. requestsPerSec bounds
// the request rate; most public APIs here throttle aggressively.
func NewClient(baseURL string, requestsPerSec float64, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if requestsPerSec <= 0 {
		requestsPerSec = 1
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		log:     log,
	}
}

// Get fetches a path and returns the raw response body. It blocks on
// the rate limiter first, so a burst of calls spreads out.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", u, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u, err)
	}
	return body, nil
}

// GetJSON fetches a path and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
