package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultTimeout bounds a single pool request when the caller passes zero.
const DefaultTimeout = 10 * time.Second

// pool APIs are few and slow-changing; keep a small warm pool per host
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 90 * time.Second
)

// ErrStatus is wrapped by [Response.Err] when the pool answered with a
// non-2xx status code.
var ErrStatus = errors.New("unexpected status code")

// Response holds the result of a pool status request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any transport error that occurred during the request.
	Error error
}

// Err returns the transport error, or an error wrapping [ErrStatus] if the
// status code is outside the 2xx range.
func (r Response) Err() error {
	if r.Error != nil {
		return r.Error
	}
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return fmt.Errorf("%w %d", ErrStatus, r.StatusCode)
	}
	return nil
}

// JSON decodes the body. Numbers are kept as [json.Number] so integer
// literals keep their literal form.
func (r Response) JSON() (any, error) {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid JSON body: trailing data")
	}
	return doc, nil
}

// Client issues GET requests against mining-pool status APIs.
//
// Timeouts are applied per request via context rather than on the
// underlying http.Client, so monitors with different timeouts can share one
// Client. Plain and TLS transports are chosen from the URL scheme.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new pool [Client] with a pooled transport.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// NewClientWithHTTP wraps an existing http.Client, e.g. one returned by
// httptest.Server.Client().
func NewClientWithHTTP(hc *http.Client) *Client {
	if hc == nil {
		return NewClient()
	}
	return &Client{httpClient: hc}
}

// Get performs a single GET request and returns a structured [Response].
//
// A zero timeout uses [DefaultTimeout]. Get always returns a Response;
// transport errors are captured in the Error field.
func (c *Client) Get(ctx context.Context, url string, timeout time.Duration) Response {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
