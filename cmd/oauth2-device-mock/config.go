package main

import "time"

// Config holds mock server configuration loaded from MOCK_* environment variables
type Config struct {
	Port    int    `envconfig:"PORT" default:"8080"`
	BaseURL string `envconfig:"BASE_URL"`

	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`

	Interval      time.Duration `envconfig:"INTERVAL" default:"5s"`
	Expiry        time.Duration `envconfig:"EXPIRY" default:"10m"`
	TokenLifetime time.Duration `envconfig:"TOKEN_LIFETIME" default:"1h"`
	AutoApprove   time.Duration `envconfig:"AUTO_APPROVE"`

	RotateRefreshTokens   bool `envconfig:"ROTATE_REFRESH_TOKENS"`
	LegacyVerificationURL bool `envconfig:"LEGACY_VERIFICATION_URL"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"10s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}
