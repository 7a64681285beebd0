package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/accelbench/vllmbench/internal/api"
	"github.com/accelbench/vllmbench/internal/database"
	"github.com/accelbench/vllmbench/internal/results"
)

// Client wraps HTTP calls to the results API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the given base URL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// ListRuns queries GET /api/v1/runs with optional filters.
func (c *Client) ListRuns(ctx context.Context, f database.RunFilter) ([]database.RunListItem, error) {
	params := url.Values{}
	if f.Model != "" {
		params.Set("model", f.Model)
	}
	if f.Status != "" {
		params.Set("status", f.Status)
	}
	if f.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	if f.Offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", f.Offset))
	}

	u := c.baseURL + "/api/v1/runs"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var items []database.RunListItem
	if err := c.doGet(ctx, u, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// PublishRun submits POST /api/v1/runs. Publishing the same run twice is
// not an error; the response reports Created false.
func (c *Client) PublishRun(ctx context.Context, rec *results.Record) (*api.CreateRunResponse, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/runs", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, c.readError(resp)
	}

	var result api.CreateRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// GetRun fetches GET /api/v1/runs/{id}.
func (c *Client) GetRun(ctx context.Context, id string) (*database.PerfRun, error) {
	var run database.PerfRun
	if err := c.doGet(ctx, c.baseURL+"/api/v1/runs/"+url.PathEscape(id), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) doGet(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.readError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) readError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("API error %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
}
