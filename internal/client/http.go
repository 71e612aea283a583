// Package client holds the outbound HTTP collaborators: the cloud sync
// API, the chain JSON-RPC endpoint, and the fiat rates API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// Result is the outcome of an HTTP call. HTTP-level failure (non-2xx) is
// a value, not an error; transport failure (no response at all) is the
// error return.
type Result struct {
	Status int
	Body   []byte
}

// OK reports whether the response carried a 2xx status.
func (r Result) OK() bool { return r.Status >= 200 && r.Status < 300 }

// HTTPClient is a thin JSON HTTP client shared by the API collaborators.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewHTTPClient creates a client for baseURL. log may be nil.
func NewHTTPClient(baseURL string, log *zap.Logger) *HTTPClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
}

// Get performs a GET against baseURL+path.
func (c *HTTPClient) Get(ctx context.Context, path string) (Result, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST with body JSON-encoded.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (Result, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) (Result, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	c.log.Debug("http call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	return Result{Status: resp.StatusCode, Body: body}, nil
}
