package vin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "vehicle-curation-portal/1.0 (vin lookup)"

// ClientConfig configures the shared HTTP client for both upstream
// services. Zero values fall back to production defaults.
type ClientConfig struct {
	DecodeBaseURL     string
	HistoryBaseURL    string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

// Client calls the VIN decode and history HTTP APIs. A single token bucket
// spans both endpoints, so the combined request rate stays under the
// configured ceiling no matter how many workers share the client.
type Client struct {
	client     *http.Client
	decodeURL  string
	historyURL string
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	userAgent  string
}

// NewClient creates a client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 1 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		client:     &http.Client{Timeout: cfg.Timeout},
		decodeURL:  cfg.DecodeBaseURL,
		historyURL: cfg.HistoryBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		userAgent:  cfg.UserAgent,
	}
}

// Decode validates the VIN syntax locally, then asks the decode service
// for the vehicle identity.
func (c *Client) Decode(ctx context.Context, vin string) (*DecodeResult, error) {
	v := Normalize(vin)
	if !Valid(v) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVIN, vin)
	}

	body, err := c.getJSON(ctx, c.decodeURL, v)
	if err != nil {
		return nil, err
	}

	var result DecodeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response for %s: %w", v, err)
	}
	result.VIN = v
	result.Raw = body
	return &result, nil
}

// History fetches the title and ownership history for the VIN.
func (c *Client) History(ctx context.Context, vin string) (*HistoryReport, error) {
	v := Normalize(vin)
	if !Valid(v) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVIN, vin)
	}

	body, err := c.getJSON(ctx, c.historyURL, v)
	if err != nil {
		return nil, err
	}

	var report HistoryReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("history response for %s: %w", v, err)
	}
	report.VIN = v
	report.Raw = body
	return &report, nil
}

// getJSON performs a rate-limited GET with exponential backoff retry.
// Server-side errors and 429s are retried; other client errors are not.
func (c *Client) getJSON(ctx context.Context, baseURL, vin string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/%s", baseURL, url.PathEscape(vin))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryDelay
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			log.Printf("VIN API: retrying %s in %v (attempt %d/%d)", vin, backoff, attempt, c.maxRetries)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryable, err := c.doOnce(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, reqURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Network errors and timeouts are worth another attempt
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, err
		}
		return body, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("status %d from %s", resp.StatusCode, reqURL)
	default:
		return nil, false, fmt.Errorf("status %d from %s", resp.StatusCode, reqURL)
	}
}
