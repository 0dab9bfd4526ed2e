// Package httpx implements the core's Transport contract over a tuned
// net/http client.
package httpx

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"marketdata/internal/fetch"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 4 << 20 // 4MB

// Client is a small wrapper around http.Client with sane defaults.
// It satisfies fetch.Transport.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "marketdata/1.0"}
}

// Do executes a request descriptor and returns the raw status and body.
func (c *Client) Do(ctx context.Context, rd fetch.RequestDescriptor) (int, []byte, error) {
	var body io.Reader = http.NoBody
	if len(rd.Body) > 0 {
		body = bytes.NewReader(rd.Body)
	}
	req, err := http.NewRequestWithContext(ctx, rd.Method, rd.URL, body)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range rd.Headers {
		req.Header.Set(k, v)
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

var _ fetch.Transport = (*Client)(nil)
