// Package tickerlab is a Go SDK for the tickerlab-server HTTP API.
package tickerlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client provides a Go SDK for interacting with the tickerlab-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new tickerlab API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tickerlab: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// GetBars retrieves bars for ticker over [start, end] (YYYY-MM-DD). An empty
// timeframe means daily.
func (c *Client) GetBars(ctx context.Context, ticker, start, end, timeframe string) (*BarsResponse, error) {
	v := url.Values{}
	v.Set("ticker", ticker)
	v.Set("start", start)
	v.Set("end", end)
	if timeframe != "" {
		v.Set("timeframe", timeframe)
	}
	var out BarsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/bars?"+v.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunBacktest runs and persists a backtest.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	var out BacktestResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/backtests", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBacktest retrieves a stored run and its trades.
func (c *Client) GetBacktest(ctx context.Context, runID int64) (*RunResponse, error) {
	var out RunResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/backtests/"+strconv.FormatInt(runID, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBacktests lists stored runs, newest first. An empty ticker lists all
// runs; limit 0 means no limit.
func (c *Client) ListBacktests(ctx context.Context, ticker string, limit int) ([]Run, error) {
	v := url.Values{}
	if ticker != "" {
		v.Set("ticker", ticker)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/backtests"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out RunsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Ask submits a free-text query.
func (c *Client) Ask(ctx context.Context, text string) (*QueryResponse, error) {
	var out QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/query", QueryRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteInstrument removes an instrument with its bars and runs.
func (c *Client) DeleteInstrument(ctx context.Context, ticker string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/instruments/"+url.PathEscape(ticker), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
