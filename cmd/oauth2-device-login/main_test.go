package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/mockprovider"
)

func testConfig(serverURL string) Config {
	cfg := defaultConfig()
	cfg.Provider = "generic"
	cfg.ClientID = "cli"
	cfg.DeviceAuthURL = serverURL + "/device/code"
	cfg.TokenURL = serverURL + "/token"
	return cfg
}

func newTestServer(t *testing.T, cfg mockprovider.Config) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(mockprovider.New(cfg))
	t.Cleanup(server.Close)
	return server
}

func newRunClient(t *testing.T, cfg Config) *deviceflow.Client {
	t.Helper()
	client, err := newClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newClient() error: %v", err)
	}
	return client
}

func TestRun(t *testing.T) {
	server := newTestServer(t, mockprovider.Config{ClientID: "cli", AutoApprove: time.Nanosecond})
	cfg := testConfig(server.URL)

	var out, prompt bytes.Buffer
	if err := run(context.Background(), newRunClient(t, cfg), cfg, true, &out, &prompt); err != nil {
		t.Fatalf("run() error: %v", err)
	}

	for _, want := range []string{
		"1) Navigate to the following URL in a web browser: " + server.URL + "/device",
		"2) Enter the following code: ",
		"Waiting for browser authorization...",
	} {
		if !strings.Contains(prompt.String(), want) {
			t.Errorf("prompt output missing %q:\n%s", want, prompt.String())
		}
	}
	for _, want := range []string{
		"Access Token: ",
		"Access Token Scope: email",
		"Access token expires in: 3600 seconds",
		"Refresh Token: ",
		"New Access Token: ",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunWithoutRefresh(t *testing.T) {
	server := newTestServer(t, mockprovider.Config{AutoApprove: time.Nanosecond})
	cfg := testConfig(server.URL)

	var out, prompt bytes.Buffer
	if err := run(context.Background(), newRunClient(t, cfg), cfg, false, &out, &prompt); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if strings.Contains(out.String(), "New Access Token") {
		t.Errorf("refreshed despite refresh=false:\n%s", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name    string
		server  mockprovider.Config
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown client",
			server:  mockprovider.Config{ClientID: "someone-else"},
			wantErr: "requesting device codes",
		},
		{
			name:   "wrong client secret",
			server: mockprovider.Config{ClientSecret: "s3cret"},
			mutate: func(c *Config) {
				c.ClientSecret = "wrong"
			},
			wantErr: "waiting for authorization",
		},
		{
			name:   "timeout before approval",
			server: mockprovider.Config{},
			mutate: func(c *Config) {
				c.Timeout = time.Nanosecond
			},
			wantErr: "timed out waiting for browser response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.server)
			cfg := testConfig(server.URL)
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			err := run(context.Background(), newRunClient(t, cfg), cfg, true, io.Discard, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("run() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
