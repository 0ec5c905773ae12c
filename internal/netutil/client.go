// Package netutil provides the HTTP plumbing used to talk to the
// personalization API.
package netutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPStatusError indicates the server responded, but with an unexpected
// HTTP status code. This is a non-network failure.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http: unexpected status %d from %s", e.StatusCode, e.URL)
}

// NonRetryableError indicates request setup failed before any transport
// attempt was made (for example, malformed URL).
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("http: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// Request describes one JSON API call.
type Request struct {
	Method string
	URL    string
	// Body is sent as application/json when non-nil.
	Body []byte
}

// Doer executes requests and returns the 200 response body.
type Doer interface {
	Do(ctx context.Context, req Request) ([]byte, error)
}

// Client executes requests via a standard HTTP client.
type Client struct {
	HTTP      *http.Client
	Timeout   time.Duration
	UserAgent string
	// Header is added to every request (e.g. the project authorization header).
	Header http.Header
}

// NewClient creates a client with the given per-request fallback timeout.
func NewClient(timeout time.Duration, userAgent string, header http.Header) *Client {
	return &Client{
		HTTP:      &http.Client{},
		Timeout:   timeout,
		UserAgent: userAgent,
		Header:    header,
	}
}

// Do sends req and returns the response body. The fallback timeout applies
// only when ctx carries no deadline of its own. Every request is tagged with a
// fresh X-Request-ID.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &NonRetryableError{Err: err}
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: req.URL}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return respBody, nil
}
