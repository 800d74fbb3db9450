package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/infra/metrics"
)

const (
	// DefaultBaseURL is the Discord REST API root.
	DefaultBaseURL = "https://discord.com/api/v10"

	defaultTimeout = 30 * time.Second
)

// Client is a minimal Discord REST client covering the provisioning
// surface. It is not a general API binding; it knows exactly the endpoints
// the workflow needs.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a REST client. The token is attached later, once
// authentication has normalized it.
func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: log,
	}
}

// SetToken attaches the credential used on every subsequent request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the credential currently attached to the client.
func (c *Client) Token() string {
	return c.token
}

// SetBaseURL overrides the API root. Used by tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// do issues one API request and decodes a JSON response into out when out is
// non-nil. Non-2xx responses become *domain.APIError carrying the status,
// body text, and any retry-after signal.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("api call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.RateLimits.Inc()
		metrics.APIRequests.WithLabelValues(method, "rate_limited").Inc()
		return &domain.APIError{
			Status:     resp.StatusCode,
			Body:       string(data),
			RetryAfter: retryAfter(resp, data),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.APIRequests.WithLabelValues(method, "error").Inc()
		return &domain.APIError{Status: resp.StatusCode, Body: string(data)}
	}

	metrics.APIRequests.WithLabelValues(method, "ok").Inc()

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

// retryAfter extracts the backoff hint from a 429 response. The header is
// preferred; the JSON body's retry_after field is the fallback. Missing or
// malformed values degrade to zero rather than erroring.
func retryAfter(resp *http.Response, body []byte) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}

	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}
	return 0
}
