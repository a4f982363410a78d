// Package validation checks values exchanged during the OAuth2 device flow
package validation

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
)

// User code settings per RFC 8628 section 6.1
const (
	UserCodeLength = 8 // Characters excluding the separator
	GroupSize      = 4 // Characters per group
	MaxRepeats     = 2 // Occurrences allowed per character
	MinEntropy     = 2 // Minimum Shannon entropy in bits
)

// ValidCharset contains the allowed characters for user codes
const ValidCharset = "BCDFGHJKLMNPQRSTVWXZ" // Excludes vowels and similar-looking characters

var codeRegex = regexp.MustCompile(fmt.Sprintf("^[%[1]s]{%[2]d}-[%[1]s]{%[2]d}$", ValidCharset, GroupSize))

// ValidationError describes a value that failed validation
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ValidateVerificationURI checks that a verification URI from the
// authorization server is an absolute http or https URL
func ValidateVerificationURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "verification_uri", Value: raw, Message: err.Error()}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return &ValidationError{Field: "verification_uri", Value: raw, Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: "verification_uri", Value: raw, Message: "host is required"}
	}
	return nil
}

// ValidateUserCode checks a user code in the XXXX-XXXX display format.
// Checks run in order: format, entropy, repeated characters.
func ValidateUserCode(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	baseCode := strings.ReplaceAll(code, "-", "")
	if len(baseCode) != UserCodeLength {
		return &ValidationError{
			Field:   "user_code",
			Value:   code,
			Message: fmt.Sprintf("length must be exactly %d characters", UserCodeLength),
		}
	}

	if !codeRegex.MatchString(code) {
		return &ValidationError{
			Field:   "user_code",
			Value:   code,
			Message: "code must be in format XXXX-XXXX using only allowed characters",
		}
	}

	if entropy := calculateEntropy(baseCode); entropy < MinEntropy {
		return &ValidationError{
			Field:   "user_code",
			Value:   code,
			Message: fmt.Sprintf("code entropy %.2f bits is below required minimum %d bits", entropy, MinEntropy),
		}
	}

	counts := make(map[rune]int)
	for _, char := range baseCode {
		counts[char]++
		if counts[char] > MaxRepeats {
			return &ValidationError{
				Field:   "user_code",
				Value:   code,
				Message: "too many repeated characters",
			}
		}
	}

	return nil
}

// calculateEntropy calculates the Shannon entropy of the code in bits
func calculateEntropy(code string) float64 {
	if code == "" {
		return 0
	}

	freqs := make(map[rune]int)
	for _, char := range code {
		freqs[char]++
	}

	length := float64(len(code))
	entropy := 0.0
	for _, count := range freqs {
		prob := float64(count) / length
		entropy -= prob * math.Log2(prob)
	}

	return entropy
}

// NormalizeCode converts a user code to canonical format
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}

// FormatCode converts a normalized code back to display format
func FormatCode(code string) string {
	if len(code) < UserCodeLength {
		return code
	}
	mid := len(code) / 2
	return code[:mid] + "-" + code[mid:]
}
