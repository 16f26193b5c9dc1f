package gbif

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

	"github.com/mkoziy/acat/internal/ratelimit"
)

// DefaultBaseURL is the public GBIF API.
const DefaultBaseURL = "https://api.gbif.org/v1"

// DefaultTimeout bounds a single GBIF request.
const DefaultTimeout = 30 * time.Second

const (
	pageSize = 100
	maxPages = 10
)

// Client handles GBIF API requests.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	baseURL    string
	maxRetries int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at another GBIF deployment.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the default http.Client. A nil client is ignored.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxRetries sets how many times 429 and 5xx responses are retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a new GBIF client.
func NewClient(limiter ratelimit.Limiter, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    limiter,
		baseURL:    DefaultBaseURL,
		maxRetries: ratelimit.DefaultConfig().MaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VernacularNames returns every vernacular name GBIF holds for taxonKey.
func (c *Client) VernacularNames(ctx context.Context, taxonKey int64) ([]VernacularName, error) {
	var names []VernacularName
	for page, offset := 0, 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("limit", strconv.Itoa(pageSize))
		u := fmt.Sprintf("%s/species/%d/vernacularNames?%s", c.baseURL, taxonKey, params.Encode())

		var resp vernacularPage
		if err := c.getJSON(ctx, u, &resp); err != nil {
			return nil, fmt.Errorf("vernacular names for %d: %w", taxonKey, err)
		}
		names = append(names, resp.Results...)
		if resp.EndOfRecords || len(resp.Results) == 0 {
			break
		}
		offset += len(resp.Results)
	}
	return names, nil
}

// StatusError is returned for non-2xx responses that are not retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			err = json.NewDecoder(resp.Body).Decode(out)
			_ = resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()

		if !ratelimit.RetryableStatus(resp.StatusCode) || !ratelimit.ShouldRetry(attempt+1, c.maxRetries) {
			return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		delay, ok := ratelimit.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if !ok {
			delay = c.limiter.RetryAfter(attempt + 1)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
