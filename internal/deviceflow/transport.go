package deviceflow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// HTTP request timeout for the default transport
	defaultTimeout = 10 * time.Second

	// Upper bound on response bodies read from the authorization server
	maxResponseSize = 1 << 20
)

// Response is the status and raw body returned by a Transport
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport posts form-encoded requests to the authorization server.
// TLS and connection management belong to the implementation.
type Transport interface {
	Post(ctx context.Context, endpoint string, form url.Values, header http.Header) (*Response, error)
}

// HTTPTransport implements Transport on top of net/http
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport using client, or a client with a
// default timeout when client is nil
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPTransport{client: client}
}

// Post sends form to endpoint. Failures before a response is read are
// returned as *NetworkError; any HTTP status is a valid Response.
func (t *HTTPTransport) Post(ctx context.Context, endpoint string, form url.Values, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// GitHub answers with form encoding unless JSON is asked for
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "POST", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &NetworkError{Op: "POST", URL: endpoint, Err: fmt.Errorf("reading response: %w", err)}
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
