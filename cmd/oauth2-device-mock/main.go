// Package main serves the mock device authorization server for local testing
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/kelseyhightower/envconfig"

	"github.com/wrale/oauth2-device-client/internal/mockprovider"
)

func main() {
	var cfg Config
	if err := envconfig.Process("MOCK", &cfg); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	provider := mockprovider.New(mockprovider.Config{
		ClientID:              cfg.ClientID,
		ClientSecret:          cfg.ClientSecret,
		BaseURL:               cfg.BaseURL,
		Interval:              cfg.Interval,
		Expiry:                cfg.Expiry,
		TokenLifetime:         cfg.TokenLifetime,
		RotateRefreshTokens:   cfg.RotateRefreshTokens,
		LegacyVerificationURL: cfg.LegacyVerificationURL,
		AutoApprove:           cfg.AutoApprove,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           middleware.Logger(provider),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Printf("Mock authorization server listening on port %d", cfg.Port)
		log.Printf("Approve codes with: curl -d user_code=XXXX-XXXX http://localhost:%d/device/verify", cfg.Port)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Error starting server: %v", err)

	case <-shutdown:
		log.Println("Starting shutdown")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
			if err := httpServer.Close(); err != nil {
				log.Printf("Error closing server: %v", err)
			}
		}
	}
}
