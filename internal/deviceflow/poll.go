package deviceflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PollOnce sends a single device access token request per RFC 8628 section
// 3.4 and classifies the response per section 3.5. It never sleeps; hosts
// running their own event loop should call it no earlier than NextPoll.
//
// authorization_pending and slow_down both yield PollPending. Denied and
// Expired end the authorization, after which PollOnce fails with a StateError.
func (c *Client) PollOnce(ctx context.Context) (PollResult, error) {
	return c.poll(ctx, time.Time{})
}

// NextPoll returns the earliest time the next poll may be sent
func (c *Client) NextPoll() time.Time {
	return c.nextPoll
}

// WaitForAuthorization polls until the user approves or denies the request,
// or the device code expires. A positive timeout, measured from RequestCodes,
// shortens the wait when it ends before expires_in. Denial and expiry return
// false without an error.
//
// The first request goes out at NextPoll, immediately after RequestCodes.
// The deadline is checked between polls; a request in flight is allowed to
// finish, and no sleep extends past the deadline.
func (c *Client) WaitForAuthorization(ctx context.Context, timeout time.Duration) (bool, error) {
	if err := c.checkLive("wait for authorization"); err != nil {
		return false, err
	}

	deadline := c.auth.ExpiresAt()
	if timeout > 0 {
		if d := c.auth.RequestedAt.Add(timeout); d.Before(deadline) {
			deadline = d
		}
	}

	for {
		wait := c.nextPoll.Sub(c.now())
		if remaining := deadline.Sub(c.now()); remaining < wait {
			wait = remaining
		}
		if wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return false, err
			}
		}

		result, err := c.poll(ctx, deadline)
		if err != nil {
			return false, err
		}

		switch result {
		case PollAuthorized:
			return true, nil
		case PollDenied, PollExpired:
			return false, nil
		}
	}
}

func (c *Client) checkLive(op string) error {
	switch {
	case c.auth == nil:
		return &StateError{Op: op, State: c.state, Err: ErrCodesNotRequested}
	case !c.live:
		return &StateError{Op: op, State: c.state, Err: ErrAuthorizationConsumed}
	}
	return nil
}

// poll runs one poll. A non-zero deadline earlier than the device code
// expiry ends the flow at that deadline instead.
func (c *Client) poll(ctx context.Context, deadline time.Time) (PollResult, error) {
	const op = "poll device token"

	if err := c.checkLive(op); err != nil {
		return PollPending, err
	}

	expiresAt := c.auth.ExpiresAt()
	if deadline.IsZero() || deadline.After(expiresAt) {
		deadline = expiresAt
	}
	if !c.now().Before(deadline) {
		c.logger.Info("device authorization expired before approval", "user_code", c.auth.UserCode)
		c.finish(StateExpired)
		return PollExpired, nil
	}

	c.setState(StatePolling)

	form := url.Values{
		"grant_type":  {GrantTypeDeviceCode},
		"device_code": {c.auth.DeviceCode},
		"client_id":   {c.clientID},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	c.logger.Debug("polling token endpoint", "interval", c.auth.Interval)
	resp, err := c.transport.Post(ctx, c.endpoint.TokenURL, form, nil)
	if err != nil {
		return PollPending, err
	}

	now := c.now()
	c.nextPoll = now.Add(c.auth.Interval)

	var body tokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return PollPending, &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	// Some servers (GitHub) report errors with status 200, so the error
	// field is checked before the status
	if body.Error != "" {
		switch body.Error {
		case ErrorCodeAuthorizationPending:
			return PollPending, nil

		case ErrorCodeSlowDown:
			c.auth.Interval += c.slowDownIncrement
			c.nextPoll = now.Add(c.auth.Interval)
			c.logger.Warn("authorization server requested slower polling", "interval", c.auth.Interval)
			return PollPending, nil

		case ErrorCodeAccessDenied:
			c.logger.Info("device authorization denied", "user_code", c.auth.UserCode)
			c.finish(StateDenied)
			return PollDenied, nil

		case ErrorCodeExpiredToken:
			c.logger.Info("device code expired", "user_code", c.auth.UserCode)
			c.finish(StateExpired)
			return PollExpired, nil

		default:
			return PollPending, &ProtocolError{
				Op:          op,
				StatusCode:  resp.StatusCode,
				Code:        body.Error,
				Description: body.ErrorDescription,
			}
		}
	}

	if resp.StatusCode != http.StatusOK {
		return PollPending, &ProtocolError{Op: op, StatusCode: resp.StatusCode}
	}
	if body.AccessToken == "" {
		return PollPending, &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("missing access_token")}
	}

	c.token = body.tokenState(now)
	c.logger.Info("device authorized", "scope", c.token.Scope, "expires_in", c.token.ExpiresIn)
	c.finish(StateAuthorized)

	return PollAuthorized, nil
}

// finish ends the polling session; the device code is never sent again
func (c *Client) finish(s State) {
	c.live = false
	c.setState(s)
}
