// Package fetch retrieves upstream API payloads for the proxy workloads.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxBody caps how much of an upstream response is read.
const maxBody = 16 << 20

// Fetcher retrieves the body at rawURL with the given query parameters.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params map[string]string) ([]byte, error)
}

// UpstreamError reports an upstream response with status >= 400.
type UpstreamError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// HTTP is a Fetcher backed by net/http.
type HTTP struct {
	Client *http.Client
}

// NewHTTP returns an HTTP fetcher with the given request timeout.
func NewHTTP(timeout time.Duration) *HTTP {
	return &HTTP{Client: &http.Client{Timeout: timeout}}
}

// Fetch issues a GET and returns the response body.
func (h *HTTP) Fetch(ctx context.Context, rawURL string, params map[string]string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close() //nolint:errcheck // read errors are surfaced below

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Redacted(), err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &UpstreamError{URL: u.Redacted(), StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
