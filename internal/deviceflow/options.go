// Package deviceflow implements the client side of the OAuth 2.0 Device Authorization Grant (RFC 8628)
package deviceflow

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Client
type Option func(*Client)

// WithTransport sets the transport used to reach the authorization server
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithClientSecret sets the client secret sent on token requests.
// Public clients leave it unset.
func WithClientSecret(secret string) Option {
	return func(c *Client) {
		c.clientSecret = secret
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithSleep replaces the wait between polls. The function must return
// ctx.Err() if the context ends first.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithSlowDownIncrement sets how much the poll interval grows on slow_down.
// RFC 8628 section 3.5 uses 5 seconds but providers vary.
func WithSlowDownIncrement(d time.Duration) Option {
	return func(c *Client) {
		c.slowDownIncrement = d
	}
}

// WithDefaultInterval sets the poll interval used when the server sends none
func WithDefaultInterval(d time.Duration) Option {
	return func(c *Client) {
		c.defaultInterval = d
	}
}

// WithToken seeds the client with a previously obtained token set so it can
// refresh without running the device flow again
func WithToken(tok TokenState) Option {
	return func(c *Client) {
		c.token = tok
	}
}
