package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/oauth"
)

// envPrefix namespaces environment overrides, e.g. DEVICE_CLIENT_ID
const envPrefix = "DEVICE"

// Config holds login settings read from an optional TOML file and then
// from environment variables, which take precedence
type Config struct {
	Provider      string `toml:"provider" envconfig:"PROVIDER"`
	ClientID      string `toml:"client_id" envconfig:"CLIENT_ID"`
	ClientSecret  string `toml:"client_secret" envconfig:"CLIENT_SECRET"`
	DeviceAuthURL string `toml:"device_auth_url" envconfig:"DEVICE_AUTH_URL"`
	TokenURL      string `toml:"token_url" envconfig:"TOKEN_URL"`

	// Keycloak realm location and Azure AD tenant
	BaseURL string `toml:"base_url" envconfig:"BASE_URL"`
	Realm   string `toml:"realm" envconfig:"REALM"`
	Tenant  string `toml:"tenant" envconfig:"TENANT"`

	Scopes []string `toml:"scopes" envconfig:"SCOPES"`

	// Timeout caps the wait for approval; zero waits until the code expires
	Timeout           time.Duration `toml:"timeout" envconfig:"TIMEOUT"`
	SlowDownIncrement time.Duration `toml:"slow_down_increment" envconfig:"SLOW_DOWN_INCREMENT"`
	HTTPTimeout       time.Duration `toml:"http_timeout" envconfig:"HTTP_TIMEOUT"`

	LogLevel string `toml:"log_level" envconfig:"LOG_LEVEL"`
}

func defaultConfig() Config {
	return Config{
		Provider:          oauth.ProviderGoogle,
		Scopes:            []string{"email"},
		SlowDownIncrement: deviceflow.DefaultSlowDownIncrement,
		HTTPTimeout:       10 * time.Second,
		LogLevel:          "info",
	}
}

// loadConfig reads path when it is not empty, then applies DEVICE_* variables
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.SlowDownIncrement < 0 {
		return errors.New("slow_down_increment must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http_timeout must be positive")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if _, err := c.providerConfig().Endpoint(); err != nil {
		return fmt.Errorf("resolving endpoints: %w", err)
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return level, nil
}

func (c Config) providerConfig() oauth.Config {
	return oauth.Config{
		Provider:      c.Provider,
		ClientID:      c.ClientID,
		ClientSecret:  c.ClientSecret,
		DeviceAuthURL: c.DeviceAuthURL,
		TokenURL:      c.TokenURL,
		BaseURL:       c.BaseURL,
		Realm:         c.Realm,
		Tenant:        c.Tenant,
	}
}
