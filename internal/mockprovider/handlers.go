package mockprovider

import (
	"errors"
	"net/http"
	"time"

	"github.com/wrale/oauth2-device-client/internal/validation"
)

const grantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

// CodeResponse is the device authorization response per RFC 8628 section 3.2
type CodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri,omitempty"`
	VerificationURL         string `json:"verification_url,omitempty"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// TokenResponse is the access token response per RFC 6749 section 5.1
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w)
	writeJSON(w, map[string]string{"status": "healthy"})
}

// parseForm parses the body and rejects repeated parameters per RFC 8628 section 3.1
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return false
	}
	for key, values := range r.PostForm {
		if len(values) > 1 {
			writeError(w, http.StatusBadRequest, "invalid_request",
				"Parameters MUST NOT be included more than once: "+key)
			return false
		}
	}
	return true
}

// authenticateClient checks client_id and client_secret against the configuration
func (s *Server) authenticateClient(w http.ResponseWriter, r *http.Request) bool {
	clientID := r.PostForm.Get("client_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "The client_id parameter is REQUIRED")
		return false
	}
	if s.cfg.ClientID != "" && clientID != s.cfg.ClientID {
		writeError(w, http.StatusUnauthorized, "invalid_client", "Unknown client")
		return false
	}
	if s.cfg.ClientSecret != "" && r.PostForm.Get("client_secret") != s.cfg.ClientSecret {
		writeError(w, http.StatusUnauthorized, "invalid_client", "Client authentication failed")
		return false
	}
	return true
}

// handleDeviceCode issues device and user codes per RFC 8628 section 3.2
func (s *Server) handleDeviceCode(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	clientID := r.PostForm.Get("client_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "The client_id parameter is REQUIRED")
		return
	}
	if s.cfg.ClientID != "" && clientID != s.cfg.ClientID {
		writeError(w, http.StatusUnauthorized, "invalid_client", "Unknown client")
		return
	}

	deviceCode, err := generateSecureCode(deviceCodeBytes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to generate device code")
		return
	}
	userCode, err := generateUserCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to generate user code")
		return
	}

	now := s.now()
	s.store.saveGrant(&grant{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		ClientID:   clientID,
		Scope:      r.PostForm.Get("scope"),
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.cfg.Expiry),
	})

	verificationURI, verificationURIComplete := s.buildVerificationURIs(r, userCode)
	response := CodeResponse{
		DeviceCode:              deviceCode,
		UserCode:                userCode,
		VerificationURIComplete: verificationURIComplete,
		ExpiresIn:               int(s.cfg.Expiry.Seconds()),
		Interval:                int(s.cfg.Interval.Seconds()),
	}
	if s.cfg.LegacyVerificationURL {
		response.VerificationURL = verificationURI
	} else {
		response.VerificationURI = verificationURI
	}

	setJSONHeaders(w)
	writeJSON(w, response)
}

// handleVerify lets the user approve or deny a request by user code
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	// Users may type the code without the dash or in lower case
	userCode := validation.FormatCode(validation.NormalizeCode(r.PostForm.Get("user_code")))
	if err := validation.ValidateUserCode(userCode); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var err error
	status := "approved"
	switch r.PostForm.Get("action") {
	case "", "approve":
		err = s.Approve(userCode)
	case "deny":
		status = "denied"
		err = s.Deny(userCode)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "action must be approve or deny")
		return
	}

	switch {
	case errors.Is(err, ErrUnknownUserCode):
		writeError(w, http.StatusNotFound, "invalid_request", "Invalid user code: code not found")
	case errors.Is(err, ErrExpiredCode):
		writeError(w, http.StatusBadRequest, "expired_token", "Code has expired")
	case errors.Is(err, ErrAlreadyDecided):
		writeError(w, http.StatusConflict, "invalid_request", "Code has already been used")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "server_error", "Error validating code: internal error")
	default:
		setJSONHeaders(w)
		writeJSON(w, map[string]string{"status": status})
	}
}

// handleToken serves the device code and refresh grants
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.tokenRequests.Add(1)

	if !parseForm(w, r) {
		return
	}

	switch grantType := r.PostForm.Get("grant_type"); grantType {
	case "":
		writeError(w, http.StatusBadRequest, "invalid_request", "The grant_type parameter is REQUIRED")
	case grantTypeDeviceCode:
		s.handleDeviceGrant(w, r)
	case "refresh_token":
		s.handleRefreshGrant(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type",
			"Only urn:ietf:params:oauth:grant-type:device_code and refresh_token are supported")
	}
}

// handleDeviceGrant answers a device access token request per RFC 8628 section 3.5
func (s *Server) handleDeviceGrant(w http.ResponseWriter, r *http.Request) {
	if !s.authenticateClient(w, r) {
		return
	}

	deviceCode := r.PostForm.Get("device_code")
	if deviceCode == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "The device_code parameter is REQUIRED")
		return
	}

	var (
		errCode, errDesc string
		issued           *grant
	)
	now := s.now()
	s.store.withGrant(deviceCode, func(g *grant) {
		switch {
		case g == nil || g.ClientID != r.PostForm.Get("client_id"):
			errCode, errDesc = "invalid_grant", "The device_code is invalid or expired"
			return
		case !now.Before(g.ExpiresAt):
			s.store.deleteGrantLocked(g)
			errCode, errDesc = "expired_token", "The device_code has expired"
			return
		case !g.LastPoll.IsZero() && now.Sub(g.LastPoll) < s.cfg.Interval:
			g.LastPoll = now
			errCode, errDesc = "slow_down", "Polling interval must be increased by 5 seconds"
			return
		}

		g.LastPoll = now
		if g.Status == statusPending && s.cfg.AutoApprove > 0 && now.Sub(g.IssuedAt) >= s.cfg.AutoApprove {
			g.Status = statusApproved
		}

		switch g.Status {
		case statusPending:
			errCode, errDesc = "authorization_pending", "The authorization request is still pending"
		case statusDenied:
			s.store.deleteGrantLocked(g)
			errCode, errDesc = "access_denied", "The user denied the authorization request"
		case statusApproved:
			s.store.deleteGrantLocked(g)
			issued = g
		}
	})

	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode, errDesc)
		return
	}

	resp, err := s.issueToken(issued.ClientID, issued.Scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to issue token")
		return
	}

	setJSONHeaders(w)
	writeJSON(w, resp)
}

// handleRefreshGrant answers a refresh request per RFC 6749 section 6
func (s *Server) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	if !s.authenticateClient(w, r) {
		return
	}

	refreshToken := r.PostForm.Get("refresh_token")
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "The refresh_token parameter is REQUIRED")
		return
	}

	rg, ok := s.store.lookupRefreshToken(refreshToken)
	if !ok || rg.ClientID != r.PostForm.Get("client_id") {
		writeError(w, http.StatusBadRequest, "invalid_grant", "The refresh token is invalid or revoked")
		return
	}

	accessToken, err := generateSecureCode(24)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to issue token")
		return
	}
	resp := TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.TokenLifetime / time.Second),
		Scope:       rg.Scope,
	}

	if s.cfg.RotateRefreshTokens {
		next, err := generateSecureCode(24)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", "Failed to issue token")
			return
		}
		s.store.rotateRefreshToken(refreshToken, next, rg)
		resp.RefreshToken = next
	}

	setJSONHeaders(w)
	writeJSON(w, resp)
}

// issueToken creates an access and refresh token pair
func (s *Server) issueToken(clientID, scope string) (*TokenResponse, error) {
	accessToken, err := generateSecureCode(24)
	if err != nil {
		return nil, err
	}
	refreshToken, err := generateSecureCode(24)
	if err != nil {
		return nil, err
	}

	s.store.saveRefreshToken(refreshToken, refreshGrant{ClientID: clientID, Scope: scope})

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.cfg.TokenLifetime / time.Second),
		RefreshToken: refreshToken,
		Scope:        scope,
	}, nil
}
