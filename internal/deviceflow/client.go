package deviceflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-device-client/internal/validation"
)

const (
	// DefaultPollInterval applies when the server omits interval, per RFC 8628 section 3.2
	DefaultPollInterval = 5 * time.Second

	// DefaultSlowDownIncrement is added to the interval on each slow_down, per RFC 8628 section 3.5
	DefaultSlowDownIncrement = 5 * time.Second

	// GrantTypeDeviceCode is the device access token grant per RFC 8628 section 3.4
	GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

	// GrantTypeRefreshToken is the refresh grant per RFC 6749 section 6
	GrantTypeRefreshToken = "refresh_token"
)

// Client runs the device authorization grant against one authorization
// server and holds the resulting tokens. A Client is not safe for concurrent
// use; run separate flows on separate clients.
type Client struct {
	clientID          string
	clientSecret      string
	endpoint          oauth2.Endpoint
	transport         Transport
	logger            *slog.Logger
	now               func() time.Time
	sleep             func(ctx context.Context, d time.Duration) error
	slowDownIncrement time.Duration
	defaultInterval   time.Duration

	state    State
	auth     *DeviceAuthorization
	live     bool // auth may still be polled
	nextPoll time.Time
	token    TokenState
}

// NewClient creates a client for clientID using the DeviceAuthURL and
// TokenURL of endpoint
func NewClient(clientID string, endpoint oauth2.Endpoint, opts ...Option) (*Client, error) {
	if clientID == "" {
		return nil, errors.New("client ID is required")
	}
	if endpoint.DeviceAuthURL == "" {
		return nil, errors.New("device authorization URL is required")
	}
	if endpoint.TokenURL == "" {
		return nil, errors.New("token URL is required")
	}

	c := &Client{
		clientID:          clientID,
		endpoint:          endpoint,
		now:               time.Now,
		sleep:             sleepContext,
		slowDownIncrement: DefaultSlowDownIncrement,
		defaultInterval:   DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(nil)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.defaultInterval <= 0 {
		c.defaultInterval = DefaultPollInterval
	}
	if c.slowDownIncrement < 0 {
		c.slowDownIncrement = 0
	}
	if c.token.AccessToken != "" || c.token.RefreshToken != "" {
		c.state = StateAuthorized
	}

	return c, nil
}

// RequestCodes starts a device authorization per RFC 8628 section 3.1.
// Scopes are joined with single spaces. On success the codes are available
// through UserCode, VerificationURL and Authorization; any earlier
// authorization is replaced.
func (c *Client) RequestCodes(ctx context.Context, scopes ...string) error {
	const op = "request device codes"

	form := url.Values{"client_id": {c.clientID}}
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	resp, err := c.transport.Post(ctx, c.endpoint.DeviceAuthURL, form, nil)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		perr := &ProtocolError{Op: op, StatusCode: resp.StatusCode}
		var body tokenResponse
		if json.Unmarshal(resp.Body, &body) == nil {
			perr.Code = body.Error
			perr.Description = body.ErrorDescription
		}
		return perr
	}

	var body deviceAuthResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	// Check required fields per RFC 8628 section 3.2
	switch {
	case body.DeviceCode == "":
		return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("missing device_code")}
	case body.UserCode == "":
		return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("missing user_code")}
	case body.VerificationURI == "":
		return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("missing verification_uri")}
	case body.ExpiresIn <= 0:
		return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("missing or non-positive expires_in")}
	}
	if err := validation.ValidateVerificationURI(body.VerificationURI); err != nil {
		return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	// The complete URI is optional, drop it rather than fail
	complete := body.VerificationURIComplete
	if complete != "" && validation.ValidateVerificationURI(complete) != nil {
		complete = ""
	}

	interval := body.Interval.duration()
	if interval <= 0 {
		interval = c.defaultInterval
	}

	now := c.now()
	c.auth = &DeviceAuthorization{
		DeviceCode:              body.DeviceCode,
		UserCode:                body.UserCode,
		VerificationURL:         body.VerificationURI,
		VerificationURLComplete: complete,
		Interval:                interval,
		ExpiresIn:               body.ExpiresIn.duration(),
		RequestedAt:             now,
	}
	c.live = true
	c.nextPoll = now
	c.setState(StateCodesRequested)

	c.logger.Info("device codes issued",
		"user_code", body.UserCode,
		"verification_url", body.VerificationURI,
		"interval", interval,
		"expires_in", c.auth.ExpiresIn,
	)

	return nil
}

// State returns the current flow state
func (c *Client) State() State {
	return c.state
}

// Authorization returns the most recent device authorization, if any.
// It remains readable after the flow ends.
func (c *Client) Authorization() (DeviceAuthorization, bool) {
	if c.auth == nil {
		return DeviceAuthorization{}, false
	}
	return *c.auth, true
}

// VerificationURL returns the URL the user should visit
func (c *Client) VerificationURL() string {
	if c.auth == nil {
		return ""
	}
	return c.auth.VerificationURL
}

// UserCode returns the code the user should enter at the verification URL
func (c *Client) UserCode() string {
	if c.auth == nil {
		return ""
	}
	return c.auth.UserCode
}

// Interval returns the current poll interval, or zero without an authorization
func (c *Client) Interval() time.Duration {
	if c.auth == nil {
		return 0
	}
	return c.auth.Interval
}

// Token returns the held token set
func (c *Client) Token() TokenState {
	return c.token
}

// AccessToken returns the held access token
func (c *Client) AccessToken() string {
	return c.token.AccessToken
}

// RefreshToken returns the held refresh token
func (c *Client) RefreshToken() string {
	return c.token.RefreshToken
}

func (c *Client) setState(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("device flow state change", "from", c.state.String(), "to", s.String())
	c.state = s
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
