package mockprovider

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Errors returned by the approval API
var (
	ErrUnknownUserCode = errors.New("unknown user code")
	ErrExpiredCode     = errors.New("code expired")
	ErrAlreadyDecided  = errors.New("authorization already approved or denied")
)

// ErrorResponse is the RFC 6749 section 5.2 error body
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// setJSONHeaders sets required headers for JSON responses per RFC 8628
func setJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// writeError sends an error response per RFC 8628 section 3.5
func writeError(w http.ResponseWriter, status int, code string, description string) {
	setJSONHeaders(w)
	w.WriteHeader(status)
	writeJSON(w, ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	})
}

// writeJSON encodes v, falling back to a fixed server_error body
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_, _ = w.Write([]byte(`{"error":"server_error","error_description":"Failed to encode response"}`))
	}
}
