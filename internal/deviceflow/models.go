package deviceflow

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"golang.org/x/oauth2"
)

// DeviceAuthorization holds the codes issued by the device authorization
// endpoint per RFC 8628 section 3.2. It lives for one polling session.
type DeviceAuthorization struct {
	DeviceCode      string
	UserCode        string
	VerificationURL string
	// Optional verification_uri_complete per RFC 8628 section 3.3.1
	VerificationURLComplete string
	Interval                time.Duration // Grows on slow_down, never shrinks
	ExpiresIn               time.Duration
	RequestedAt             time.Time
}

// ExpiresAt returns the absolute time the device code stops being valid
func (a DeviceAuthorization) ExpiresAt() time.Time {
	return a.RequestedAt.Add(a.ExpiresIn)
}

// TokenState is the token set held by a Client. Values are never mutated in
// place; each successful response replaces the whole value.
type TokenState struct {
	AccessToken  string
	TokenType    string
	Scope        string // Space-delimited scopes as granted by the server
	ExpiresIn    int    // Seconds to live at issuance
	RefreshToken string
	IssuedAt     time.Time
}

// expiryDelta mirrors golang.org/x/oauth2 so tokens are refreshed slightly early
const expiryDelta = 10 * time.Second

// Expiry returns the absolute expiry, or the zero time if the server sent none
func (t TokenState) Expiry() time.Time {
	if t.ExpiresIn <= 0 || t.IssuedAt.IsZero() {
		return time.Time{}
	}
	return t.IssuedAt.Add(secondsToDuration(int64(t.ExpiresIn)))
}

// Valid reports whether the access token is present and not about to expire at now
func (t TokenState) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	exp := t.Expiry()
	return exp.IsZero() || now.Add(expiryDelta).Before(exp)
}

// OAuth2Token converts the state into a golang.org/x/oauth2 token
func (t TokenState) OAuth2Token() *oauth2.Token {
	if t.AccessToken == "" {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
	}
	return tok.WithExtra(map[string]any{"scope": t.Scope})
}

// maxSeconds is the largest whole number of seconds a time.Duration can hold
const maxSeconds = math.MaxInt64 / int64(time.Second)

// secondsToDuration converts a seconds count, saturating at the limits of time.Duration
func secondsToDuration(n int64) time.Duration {
	switch {
	case n > maxSeconds:
		n = maxSeconds
	case n < -maxSeconds:
		n = -maxSeconds
	}
	return time.Duration(n) * time.Second
}

// seconds decodes integer durations that some providers send as JSON
// strings or as whole floating point numbers
type seconds int64

func (s *seconds) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n json.Number
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		n = json.Number(str)
	} else if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n == "" {
		return nil
	}

	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
			return fmt.Errorf("invalid seconds value %q", n)
		}
		switch {
		case f > float64(maxSeconds):
			v = maxSeconds
		case f < -float64(maxSeconds):
			v = -maxSeconds
		default:
			v = int64(f)
		}
	}
	*s = seconds(v)
	return nil
}

func (s seconds) duration() time.Duration {
	return secondsToDuration(int64(s))
}

// deviceAuthResponse is the wire form of RFC 8628 section 3.2
type deviceAuthResponse struct {
	DeviceCode              string  `json:"device_code"`
	UserCode                string  `json:"user_code"`
	VerificationURI         string  `json:"verification_uri"`
	VerificationURIComplete string  `json:"verification_uri_complete,omitempty"`
	ExpiresIn               seconds `json:"expires_in"`
	Interval                seconds `json:"interval,omitempty"`
}

func (r *deviceAuthResponse) UnmarshalJSON(data []byte) error {
	type alias deviceAuthResponse
	aux := &struct {
		// Google spells the field verification_url
		VerificationURL string `json:"verification_url"`
		*alias
	}{
		alias: (*alias)(r),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if r.VerificationURI == "" {
		r.VerificationURI = aux.VerificationURL
	}
	return nil
}

// tokenResponse covers both the success (RFC 6749 section 5.1) and error
// (section 5.2) bodies of the token endpoint
type tokenResponse struct {
	AccessToken  string  `json:"access_token"`
	TokenType    string  `json:"token_type"`
	ExpiresIn    seconds `json:"expires_in"`
	RefreshToken string  `json:"refresh_token,omitempty"`
	Scope        string  `json:"scope,omitempty"`

	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (r tokenResponse) tokenState(issuedAt time.Time) TokenState {
	return TokenState{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		Scope:        r.Scope,
		ExpiresIn:    int(r.ExpiresIn),
		RefreshToken: r.RefreshToken,
		IssuedAt:     issuedAt,
	}
}

// refreshed builds the state after a refresh grant. Fields the server omitted
// keep their previous values so a partial response never erases a token.
func (t TokenState) refreshed(r tokenResponse, issuedAt time.Time) TokenState {
	next := r.tokenState(issuedAt)
	if next.RefreshToken == "" {
		next.RefreshToken = t.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = t.Scope
	}
	if next.TokenType == "" {
		next.TokenType = t.TokenType
	}
	return next
}
