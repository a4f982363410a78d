package deviceflow

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

var testEndpoint = oauth2.Endpoint{
	DeviceAuthURL: "https://auth.example.com/device/code",
	TokenURL:      "https://auth.example.com/token",
}

// fakeClock is a manual clock whose Sleep advances time and records the wait
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	// onSleep runs after each sleep with the number of sleeps so far
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type recordedRequest struct {
	URL  string
	Form url.Values
}

type scriptedResponse struct {
	status int
	body   string
	err    error
}

// scriptedTransport answers requests from a fixed script. The last entry
// repeats once the script is exhausted.
type scriptedTransport struct {
	t         *testing.T
	responses []scriptedResponse
	requests  []recordedRequest
}

func newScriptedTransport(t *testing.T, responses ...scriptedResponse) *scriptedTransport {
	return &scriptedTransport{t: t, responses: responses}
}

func (s *scriptedTransport) Post(ctx context.Context, endpoint string, form url.Values, header http.Header) (*Response, error) {
	s.requests = append(s.requests, recordedRequest{URL: endpoint, Form: form})
	if len(s.responses) == 0 {
		s.t.Fatalf("unexpected request to %s", endpoint)
	}

	r := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &Response{StatusCode: r.status, Body: []byte(r.body)}, nil
}

func ok(body string) scriptedResponse {
	return scriptedResponse{status: http.StatusOK, body: body}
}

func oauthError(code string) scriptedResponse {
	return scriptedResponse{status: http.StatusBadRequest, body: `{"error":"` + code + `"}`}
}

const (
	deviceCodeBody = `{
		"device_code": "4/4-GMMhmHCXhWEzkobqIHGG_EnNYYsAkukHspeYUk9E8",
		"user_code": "GQVQ-JKEC",
		"verification_url": "https://www.google.com/device",
		"expires_in": 1800,
		"interval": 5
	}`

	tokenBody = `{
		"access_token": "ya29.a0Af",
		"token_type": "Bearer",
		"expires_in": 3599,
		"scope": "email",
		"refresh_token": "1//0g-refresh"
	}`
)

// newTestClient builds a client on a fake clock with codes already requested
func newTestClient(t *testing.T, transport *scriptedTransport, clock *fakeClock, opts ...Option) *Client {
	t.Helper()

	transport.responses = append([]scriptedResponse{ok(deviceCodeBody)}, transport.responses...)

	opts = append([]Option{
		WithTransport(transport),
		WithClientSecret("test-secret"),
		WithClock(clock.Now),
		WithSleep(clock.Sleep),
	}, opts...)
	c, err := NewClient("test-client", testEndpoint, opts...)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if err := c.RequestCodes(context.Background(), "email"); err != nil {
		t.Fatalf("RequestCodes() error: %v", err)
	}
	return c
}

// tokenRequests returns the requests sent to the token endpoint
func (s *scriptedTransport) tokenRequests() []recordedRequest {
	var out []recordedRequest
	for _, r := range s.requests {
		if r.URL == testEndpoint.TokenURL {
			out = append(out, r)
		}
	}
	return out
}
