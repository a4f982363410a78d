package deviceflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// RefreshAccessToken exchanges the held refresh token for a new access token
// per RFC 6749 section 6. It reports false when the server refuses the
// grant, leaving the held tokens untouched. The refresh token is replaced
// only when the server rotates it.
//
// Refreshing does not change the outcome of the device flow: State reports
// StateRefreshing only while the request is in flight.
func (c *Client) RefreshAccessToken(ctx context.Context) (bool, error) {
	const op = "refresh access token"

	if c.token.RefreshToken == "" {
		return false, &StateError{Op: op, State: c.state, Err: ErrNoRefreshToken}
	}

	prev := c.state
	c.setState(StateRefreshing)
	defer c.setState(prev)

	form := url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {c.token.RefreshToken},
		"client_id":     {c.clientID},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	resp, err := c.transport.Post(ctx, c.endpoint.TokenURL, form, nil)
	if err != nil {
		return false, err
	}

	var body tokenResponse
	decodeErr := json.Unmarshal(resp.Body, &body)

	if resp.StatusCode != http.StatusOK || body.Error != "" {
		c.logger.Warn("refresh grant rejected",
			"status", resp.StatusCode,
			"error", body.Error,
			"error_description", body.ErrorDescription,
		)
		return false, nil
	}
	if decodeErr != nil {
		return false, &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", decodeErr)}
	}
	if body.AccessToken == "" {
		return false, &ProtocolError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("missing access_token")}
	}

	c.token = c.token.refreshed(body, c.now())
	c.logger.Info("access token refreshed",
		"expires_in", c.token.ExpiresIn,
		"rotated", body.RefreshToken != "",
	)

	return true, nil
}
