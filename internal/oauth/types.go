// Package oauth resolves authorization server endpoints for the device flow
package oauth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// Known provider presets
const (
	ProviderGeneric  = "generic"
	ProviderGoogle   = "google"
	ProviderGitHub   = "github"
	ProviderAzureAD  = "azuread"
	ProviderKeycloak = "keycloak"
)

const (
	// Keycloak endpoint paths below the realm URL
	keycloakDevicePath = "/protocol/openid-connect/auth/device"
	keycloakTokenPath  = "/protocol/openid-connect/token"

	defaultAzureTenant = "common"
)

// Common errors returned when resolving endpoints
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingEndpoint = errors.New("device authorization and token URLs are required")
)

// Config holds the provider settings needed to run the device flow.
// Explicit URLs override the ones implied by Provider.
type Config struct {
	Provider      string
	ClientID      string
	ClientSecret  string
	DeviceAuthURL string
	TokenURL      string

	// BaseURL and Realm locate a Keycloak realm; Tenant selects an Azure AD tenant
	BaseURL string
	Realm   string
	Tenant  string
}

// Endpoint returns the device authorization and token endpoints
func (c Config) Endpoint() (oauth2.Endpoint, error) {
	var ep oauth2.Endpoint

	switch strings.ToLower(c.Provider) {
	case "", ProviderGeneric:
	case ProviderGoogle:
		ep = endpoints.Google
	case ProviderGitHub:
		ep = endpoints.GitHub
	case ProviderAzureAD:
		tenant := c.Tenant
		if tenant == "" {
			tenant = defaultAzureTenant
		}
		ep = endpoints.AzureAD(tenant)
	case ProviderKeycloak:
		realmURL, err := keycloakRealmURL(c.BaseURL, c.Realm)
		if err != nil {
			return oauth2.Endpoint{}, err
		}
		ep = oauth2.Endpoint{
			DeviceAuthURL: realmURL + keycloakDevicePath,
			TokenURL:      realmURL + keycloakTokenPath,
		}
	default:
		return oauth2.Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}

	if c.DeviceAuthURL != "" {
		ep.DeviceAuthURL = c.DeviceAuthURL
	}
	if c.TokenURL != "" {
		ep.TokenURL = c.TokenURL
	}
	if ep.DeviceAuthURL == "" || ep.TokenURL == "" {
		return oauth2.Endpoint{}, ErrMissingEndpoint
	}

	return ep, nil
}

// NewClient creates a device flow client for the resolved endpoints.
// The client secret is sent only when set; opts are applied after it.
func (c Config) NewClient(opts ...deviceflow.Option) (*deviceflow.Client, error) {
	ep, err := c.Endpoint()
	if err != nil {
		return nil, err
	}

	opts = append([]deviceflow.Option{deviceflow.WithClientSecret(c.ClientSecret)}, opts...)
	return deviceflow.NewClient(c.ClientID, ep, opts...)
}

func keycloakRealmURL(baseURL, realm string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("base URL is required")
	}
	if realm == "" {
		return "", fmt.Errorf("realm is required")
	}

	baseURL = strings.TrimSuffix(baseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	return fmt.Sprintf("%s/realms/%s", baseURL, url.PathEscape(realm)), nil
}
