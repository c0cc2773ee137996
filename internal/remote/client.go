// Package remote forwards start-day requests to the remote simulation
// service, either passing its response through untouched or decoding it
// into a population.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/daysim/internal/agents"
)

// DefaultBaseURL is the public simulation worker.
const DefaultBaseURL = "https://bus.orville.wang"

// maxBody bounds how much of a response is read.
const maxBody = 8 << 20

// ErrBodyTooLarge is returned when a remote response exceeds maxBody.
var ErrBodyTooLarge = errors.New("response body too large")

// StartRequest is the start-day payload shared with the remote service.
type StartRequest struct {
	StartTime  string `json:"startTime"`
	AgentCount int    `json:"agentCount"`
}

// Response is the remote reply, passed through verbatim.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client calls the remote start_day endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. Returns nil if baseURL is empty (remote
// population source disabled).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled returns true if the client has somewhere to send requests.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// StartDay forwards req and returns the remote status and body unchanged.
// Only transport failures are errors; any HTTP status is a Response.
func (c *Client) StartDay(ctx context.Context, req StartRequest) (*Response, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("remote client not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.forward(ctx, body)
}

// Forward posts a raw JSON body as-is. The HTTP proxy uses this so the
// caller's payload reaches the worker byte for byte.
func (c *Client) Forward(ctx context.Context, body []byte) (*Response, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("remote client not configured")
	}
	return c.forward(ctx, body)
}

func (c *Client) forward(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/start_day", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("remote call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(respBody) > maxBody {
		return nil, fmt.Errorf("read response: %w", ErrBodyTooLarge)
	}

	slog.Debug("remote start_day",
		"status", resp.StatusCode,
		"bytes", len(respBody),
		"elapsed", time.Since(start),
	)

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// FetchPopulation asks the remote service for a population and decodes it.
func (c *Client) FetchPopulation(ctx context.Context, req StartRequest) ([]*agents.Agent, error) {
	resp, err := c.StartDay(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("remote error %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}
	return agents.DecodePopulation(resp.Body)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
