package deviceflow

import (
	"errors"
	"fmt"
)

// Common errors that may occur during the device authorization flow
var (
	// ErrCodesNotRequested indicates polling was attempted before RequestCodes
	ErrCodesNotRequested = errors.New("device codes have not been requested")

	// ErrAuthorizationConsumed indicates the device code already reached a terminal outcome
	ErrAuthorizationConsumed = errors.New("device authorization is no longer active")

	// ErrNoRefreshToken indicates a refresh was attempted without a refresh token
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrRefreshRejected indicates the authorization server refused the refresh grant
	ErrRefreshRejected = errors.New("refresh token rejected by authorization server")
)

// Error codes returned by the token endpoint per RFC 6749 section 5.2 and RFC 8628 section 3.5
const (
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeExpiredToken         = "expired_token"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeUnsupportedGrant     = "unsupported_grant_type"
	ErrorCodeServerError          = "server_error"
)

// ProtocolError reports a malformed or unexpected authorization server response.
type ProtocolError struct {
	Op          string
	StatusCode  int
	Code        string // OAuth error code, if the server sent one
	Description string
	Err         error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%s: server returned %s: %s", e.Op, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s: server returned %s", e.Op, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// StateError reports an operation invoked out of sequence.
type StateError struct {
	Op    string
	State State
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %v (state %s)", e.Op, e.Err, e.State)
}

func (e *StateError) Unwrap() error { return e.Err }

// NetworkError wraps a failure of the underlying transport.
// The client never handles it, it is returned to the caller as-is.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
