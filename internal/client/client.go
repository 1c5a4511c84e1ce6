// Package client provides an HTTP client for the coursechat server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/coursechat/internal/service"
)

// Client talks to a running coursechat-server over its REST API. It
// satisfies the same query surface as the in-process assistant, so the
// CLI can use either interchangeably.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the given base URL. If the URL is empty,
// COURSECHAT_SERVER_URL is used, then localhost.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("COURSECHAT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := 2 * time.Minute // LLM answers can take a while
	if t := os.Getenv("COURSECHAT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// queryRequest mirrors the server's POST /api/query body.
type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// Query sends a question to the server and returns its answer.
func (c *Client) Query(ctx context.Context, question, sessionID string) (*service.QueryResponse, error) {
	body, err := json.Marshal(queryRequest{Query: question, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp service.QueryResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats fetches course analytics from the server.
func (c *Client) Stats(ctx context.Context) (*service.CourseStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/courses", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var stats service.CourseStats
	if err := c.do(req, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health reports whether the server answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, nil)
}

// do executes a request and decodes the JSON response into out. Error
// responses are unwrapped to their server-side message.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if body, readErr := io.ReadAll(resp.Body); readErr == nil {
			if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
				return fmt.Errorf("server error (status %d): %s", resp.StatusCode, apiErr.Error)
			}
		}
		return fmt.Errorf("server error (status %d)", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
