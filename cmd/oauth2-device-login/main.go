// Package main implements a command line login using the OAuth 2.0 Device
// Authorization Grant. It prints the verification URL and user code, waits
// for approval in a browser, then prints the issued tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// Version is set by the build process
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	refresh := flag.Bool("refresh", true, "refresh the access token once after authorization")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	level, _ := cfg.level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger.Debug("starting device login", "version", Version, "provider", cfg.Provider)

	client, err := newClient(cfg, logger)
	if err != nil {
		log.Fatalf("Error creating client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, client, cfg, *refresh, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func newClient(cfg Config, logger *slog.Logger) (*deviceflow.Client, error) {
	return cfg.providerConfig().NewClient(
		deviceflow.WithTransport(deviceflow.NewHTTPTransport(&http.Client{Timeout: cfg.HTTPTimeout})),
		deviceflow.WithSlowDownIncrement(cfg.SlowDownIncrement),
		deviceflow.WithLogger(logger),
	)
}

// run drives one login. Instructions go to prompt, tokens to out.
func run(ctx context.Context, client *deviceflow.Client, cfg Config, refresh bool, out, prompt io.Writer) error {
	if err := client.RequestCodes(ctx, cfg.Scopes...); err != nil {
		return fmt.Errorf("requesting device codes: %w", err)
	}

	fmt.Fprintln(prompt, "1) Navigate to the following URL in a web browser:", client.VerificationURL())
	if auth, _ := client.Authorization(); auth.VerificationURLComplete != "" {
		fmt.Fprintln(prompt, "   or open this URL to skip entering the code:", auth.VerificationURLComplete)
	}
	fmt.Fprintln(prompt, "2) Enter the following code:", client.UserCode())
	fmt.Fprintln(prompt, "Waiting for browser authorization...")

	authorized, err := client.WaitForAuthorization(ctx, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("waiting for authorization: %w", err)
	}
	if !authorized {
		if client.State() == deviceflow.StateDenied {
			return errors.New("authorization denied in the browser")
		}
		return errors.New("timed out waiting for browser response")
	}

	tok := client.Token()
	fmt.Fprintln(out, "Access Token:", tok.AccessToken)
	fmt.Fprintln(out, "Access Token Scope:", tok.Scope)
	fmt.Fprintf(out, "Access token expires in: %d seconds\n", tok.ExpiresIn)
	fmt.Fprintln(out, "Refresh Token:", tok.RefreshToken)

	if !refresh {
		return nil
	}

	refreshed, err := client.RefreshAccessToken(ctx)
	switch {
	case errors.Is(err, deviceflow.ErrNoRefreshToken):
		fmt.Fprintln(prompt, "No refresh token issued, skipping refresh")
		return nil
	case err != nil:
		return fmt.Errorf("refreshing access token: %w", err)
	case !refreshed:
		return errors.New("unable to refresh access token, has the token been revoked?")
	}

	fmt.Fprintln(out, "New Access Token:", client.AccessToken())
	return nil
}
