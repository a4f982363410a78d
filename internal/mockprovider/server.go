// Package mockprovider is an in-process OAuth 2.0 authorization server that
// speaks the device authorization grant (RFC 8628) and the refresh grant.
// It backs integration tests and the oauth2-device-mock binary.
package mockprovider

import (
	"net/http"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// DefaultInterval is the poll interval announced to clients
	DefaultInterval = 5 * time.Second

	// DefaultExpiry is the device code lifetime, the RFC 8628 recommended minimum
	DefaultExpiry = 10 * time.Minute

	// DefaultTokenLifetime is the access token lifetime
	DefaultTokenLifetime = time.Hour
)

// Config controls the behavior of the server
type Config struct {
	// ClientID and ClientSecret, when set, must match every request
	ClientID     string
	ClientSecret string

	// BaseURL prefixes verification URIs; the request host is used when empty
	BaseURL string

	Interval      time.Duration
	Expiry        time.Duration
	TokenLifetime time.Duration

	// RotateRefreshTokens issues a new refresh token on every refresh grant.
	// Otherwise refresh responses omit refresh_token, as Google does.
	RotateRefreshTokens bool

	// LegacyVerificationURL sends verification_url instead of verification_uri
	LegacyVerificationURL bool

	// AutoApprove approves pending grants once they are this old
	AutoApprove time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// Server is an http.Handler emulating an authorization server
type Server struct {
	cfg    Config
	router *chi.Mux
	store  *memoryStore
	now    func() time.Time

	tokenRequests atomic.Int64
}

// New creates a server, filling unset durations with defaults
func New(cfg Config, opts ...Option) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = DefaultTokenLifetime
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		store:  newMemoryStore(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/device/code", s.handleDeviceCode)
	s.router.Post("/device/verify", s.handleVerify)
	s.router.Post("/token", s.handleToken)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// TokenRequests returns how many requests reached the token endpoint
func (s *Server) TokenRequests() int {
	return int(s.tokenRequests.Load())
}

// Approve marks the grant for userCode as approved by the user
func (s *Server) Approve(userCode string) error {
	return s.decide(userCode, statusApproved)
}

// Deny marks the grant for userCode as denied by the user
func (s *Server) Deny(userCode string) error {
	return s.decide(userCode, statusDenied)
}

func (s *Server) decide(userCode string, status grantStatus) error {
	var err error
	s.store.withGrantByUserCode(userCode, func(g *grant) {
		switch {
		case g == nil:
			err = ErrUnknownUserCode
		case !s.now().Before(g.ExpiresAt):
			err = ErrExpiredCode
		case g.Status != statusPending:
			err = ErrAlreadyDecided
		default:
			g.Status = status
		}
	})
	return err
}

// buildVerificationURIs creates the verification URIs per RFC 8628 sections 3.2 and 3.3.1
func (s *Server) buildVerificationURIs(r *http.Request, userCode string) (string, string) {
	base := s.cfg.BaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", ""
	}
	baseURL.Path = path.Join(baseURL.Path, "device")
	verificationURI := baseURL.String()

	completeURL := *baseURL
	q := completeURL.Query()
	q.Set("code", userCode)
	completeURL.RawQuery = q.Encode()

	return verificationURI, completeURL.String()
}
