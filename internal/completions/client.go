package completions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("endpoint returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}

// maxErrorBody caps how much of a failed response is kept in a StatusError.
const maxErrorBody = 512

// Client posts completion requests to a single endpoint URL.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends "Authorization: Bearer <key>" on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client targeting the given endpoint URL
// (e.g. "http://localhost:8000/v1/completions").
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: newHTTPClient(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string { return c.url }

// Complete posts req and returns the full response body. The body has been
// read to EOF when Complete returns, so callers can stop their latency clock
// immediately afterwards. Deadlines come from ctx.
func (c *Client) Complete(ctx context.Context, req Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readError(resp.StatusCode, body)
	}
	return body, nil
}

func readError(code int, body []byte) error {
	var apiErr struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	msg := string(bytes.TrimSpace(body))
	if json.Unmarshal(body, &apiErr) == nil {
		switch {
		case apiErr.Message != "":
			msg = apiErr.Message
		case len(apiErr.Error) > 0:
			var s string
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(apiErr.Error, &s) == nil && s != "" {
				msg = s
			} else if json.Unmarshal(apiErr.Error, &nested) == nil && nested.Message != "" {
				msg = nested.Message
			}
		}
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return &StatusError{StatusCode: code, Body: msg}
}

// newHTTPClient keeps connections alive between sequential requests so
// reconnects do not skew latency. Per-request timeouts come from the caller's
// context, not from http.Client.Timeout.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2: true,
	}
	return &http.Client{Transport: transport}
}
