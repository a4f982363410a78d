package mockprovider

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/wrale/oauth2-device-client/internal/validation"
)

// deviceCodeBytes gives 64 hex characters per device code
const deviceCodeBytes = 32

// generateSecureCode returns length random bytes, hex encoded
func generateSecureCode(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// selectRandomChar selects a random character from available set without modulo bias
func selectRandomChar(available []rune) (rune, error) {
	availLen := len(available)
	maxNeeded := 256 - (256 % availLen)

	b := make([]byte, 1)
	for {
		if _, err := rand.Read(b); err != nil {
			return 0, fmt.Errorf("generating random byte: %w", err)
		}
		if int(b[0]) >= maxNeeded {
			continue
		}
		return available[int(b[0])%availLen], nil
	}
}

// generateUserCode generates a user code per RFC 8628 section 6.1
func generateUserCode() (string, error) {
	const maxAttempts = 100
	charset := []rune(validation.ValidCharset)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var builder strings.Builder
		freqs := make(map[rune]int)

		for i := 0; i < validation.UserCodeLength; i++ {
			if i == validation.GroupSize {
				builder.WriteRune('-')
			}

			var available []rune
			for _, c := range charset {
				if freqs[c] < validation.MaxRepeats {
					available = append(available, c)
				}
			}

			char, err := selectRandomChar(available)
			if err != nil {
				return "", err
			}
			builder.WriteRune(char)
			freqs[char]++
		}

		code := builder.String()
		if err := validation.ValidateUserCode(code); err == nil {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate valid code after %d attempts", maxAttempts)
}
