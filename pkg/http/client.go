package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// StatusError is returned for non-2xx responses. Body holds at most the
// first 4 KiB of the response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Request describes one outbound call. JSON, when set, is encoded as the body.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header map[string]string
	JSON   interface{}
}

// ClientOption configures Client.
type ClientOption func(*Client)

// Client sends JSON requests to upstream services.
type Client struct {
	hc *http.Client
}

// NewClient returns a client with a 30s timeout unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{hc: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient replaces the transport client, including its timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the overall per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.hc = &http.Client{Timeout: d, Transport: c.hc.Transport} }
}

// Do sends req and decodes a 2xx JSON body into out, which may be nil.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	var body io.Reader
	if req.JSON != nil {
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	target := req.URL
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Header {
		hr.Header.Set(k, v)
	}

	resp, err := c.hc.Do(hr)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
