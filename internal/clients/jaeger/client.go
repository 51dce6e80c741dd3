// Package jaeger provides a client for reading traces from the Jaeger query HTTP API.
package jaeger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client implements HTTP interaction with the Jaeger query API to fetch traces and spans.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Jaeger client. A zero timeout leaves the
// transport defaults in charge.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// doRequest performs the HTTP request to Jaeger via HTTP API
func (c *Client) doRequest(ctx context.Context, apiPath string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	// Keep any path prefix Jaeger is mounted under.
	u.Path = strings.TrimRight(u.Path, "/") + apiPath
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jaeger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from jaeger: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// FetchTraces fetches up to limit recent traces recorded for service.
func (c *Client) FetchTraces(ctx context.Context, service string, limit int) ([]Trace, error) {
	params := url.Values{
		"service": []string{service},
		"limit":   []string{strconv.Itoa(limit)},
	}

	resp, err := c.doRequest(ctx, "/api/traces", params)
	if err != nil {
		c.logger.Debug("Failed to fetch traces", "service", service, "error", err)
		return nil, err
	}

	var result QueryResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to parse traces response: %w", err)
	}

	if len(result.Errors) > 0 {
		c.logger.Debug("Jaeger reported query errors", "service", service, "count", len(result.Errors))
	}

	c.logger.Debug("Fetched traces", "service", service, "limit", limit, "count", len(result.Data))
	return result.Data, nil
}
