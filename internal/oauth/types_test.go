package oauth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/mockprovider"
)

func TestConfigEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    oauth2.Endpoint
		wantErr error
	}{
		{
			name: "generic with explicit URLs",
			cfg: Config{
				DeviceAuthURL: "https://auth.example.com/device",
				TokenURL:      "https://auth.example.com/token",
			},
			want: oauth2.Endpoint{
				DeviceAuthURL: "https://auth.example.com/device",
				TokenURL:      "https://auth.example.com/token",
			},
		},
		{
			name:    "generic without URLs",
			cfg:     Config{Provider: ProviderGeneric},
			wantErr: ErrMissingEndpoint,
		},
		{
			name: "google preset",
			cfg:  Config{Provider: "Google"},
			want: endpoints.Google,
		},
		{
			name: "github preset",
			cfg:  Config{Provider: ProviderGitHub},
			want: endpoints.GitHub,
		},
		{
			name: "azuread default tenant",
			cfg:  Config{Provider: ProviderAzureAD},
			want: endpoints.AzureAD("common"),
		},
		{
			name: "azuread explicit tenant",
			cfg:  Config{Provider: ProviderAzureAD, Tenant: "contoso"},
			want: endpoints.AzureAD("contoso"),
		},
		{
			name: "keycloak realm",
			cfg:  Config{Provider: ProviderKeycloak, BaseURL: "https://sso.example.com/", Realm: "devices"},
			want: oauth2.Endpoint{
				DeviceAuthURL: "https://sso.example.com/realms/devices/protocol/openid-connect/auth/device",
				TokenURL:      "https://sso.example.com/realms/devices/protocol/openid-connect/token",
			},
		},
		{
			name: "preset with token override",
			cfg:  Config{Provider: ProviderGoogle, TokenURL: "http://127.0.0.1:9000/token"},
			want: oauth2.Endpoint{
				AuthURL:       endpoints.Google.AuthURL,
				DeviceAuthURL: endpoints.Google.DeviceAuthURL,
				TokenURL:      "http://127.0.0.1:9000/token",
				AuthStyle:     endpoints.Google.AuthStyle,
			},
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "myspace"},
			wantErr: ErrUnknownProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Endpoint()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Endpoint() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Endpoint() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Endpoint() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigEndpointKeycloakRequiresRealm(t *testing.T) {
	_, err := Config{Provider: ProviderKeycloak, BaseURL: "https://sso.example.com"}.Endpoint()
	if err == nil || err.Error() != "realm is required" {
		t.Errorf("Endpoint() error = %v, want realm is required", err)
	}
}

func TestConfigNewClient(t *testing.T) {
	server := httptest.NewServer(mockprovider.New(mockprovider.Config{
		ClientID:     "device-cli",
		ClientSecret: "s3cret",
		AutoApprove:  time.Nanosecond,
	}))
	defer server.Close()

	tests := []struct {
		name           string
		secret         string
		wantAuthorized bool
	}{
		{name: "client credentials are sent", secret: "s3cret", wantAuthorized: true},
		{name: "wrong secret is rejected", secret: "guess"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				ClientID:      "device-cli",
				ClientSecret:  tt.secret,
				DeviceAuthURL: server.URL + "/device/code",
				TokenURL:      server.URL + "/token",
			}
			client, err := cfg.NewClient(deviceflow.WithTransport(deviceflow.NewHTTPTransport(server.Client())))
			if err != nil {
				t.Fatalf("NewClient() error: %v", err)
			}

			ctx := context.Background()
			if err := client.RequestCodes(ctx, "email"); err != nil {
				t.Fatalf("RequestCodes() error: %v", err)
			}
			result, err := client.PollOnce(ctx)
			if tt.wantAuthorized {
				if err != nil || result != deviceflow.PollAuthorized {
					t.Fatalf("PollOnce() = %s, %v; want authorized", result, err)
				}
				return
			}
			var perr *deviceflow.ProtocolError
			if !errors.As(err, &perr) || perr.Code != deviceflow.ErrorCodeInvalidClient {
				t.Errorf("PollOnce() error = %v, want invalid_client", err)
			}
		})
	}
}

func TestConfigNewClientErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown provider", cfg: Config{Provider: "myspace", ClientID: "c"}},
		{name: "missing endpoints", cfg: Config{ClientID: "c"}},
		{name: "missing client id", cfg: Config{Provider: ProviderGoogle}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.NewClient(); err == nil {
				t.Error("NewClient() expected error")
			}
		})
	}
}
