// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/sitecraft/internal/api/auth"
	"github.com/good-yellow-bee/sitecraft/internal/api/health"
	"github.com/good-yellow-bee/sitecraft/internal/api/middleware"
	"github.com/good-yellow-bee/sitecraft/internal/sitecache"
	"github.com/good-yellow-bee/sitecraft/internal/storage"
	"github.com/good-yellow-bee/sitecraft/pkg/logger"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address string
	// PublicBaseURL prefixes live site URLs returned by publish.
	PublicBaseURL   string
	JWTSecret       []byte
	TLSEnabled      bool
	TLSCertFile     string
	TLSKeyFile      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// RateLimitPerIP applies to the unauthenticated /api/auth routes, per minute.
	RateLimitPerIP   int
	RateLimitPerUser int
	LockoutThreshold int
	LockoutDuration  time.Duration
	Password         auth.PasswordPolicy
	BcryptCost       int
	Verbose          bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost" + c.Address
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 20
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 300
	}
	if c.LockoutThreshold == 0 {
		c.LockoutThreshold = 5
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = 15 * time.Minute
	}
	if c.Password.MinLength == 0 {
		c.Password = auth.DefaultPasswordPolicy
	}
}

// Server is the HTTP API server.
type Server struct {
	config  *Config
	storage storage.Storage
	cache   sitecache.Cache
	server  *http.Server
	log     zerolog.Logger

	jwt           *auth.JWTService
	authHandler   *auth.Handler
	lockout       *auth.LockoutTracker
	ipLimiter     *middleware.RateLimiter
	userLimiter   *middleware.RateLimiter
	healthHandler *health.Handler
}

// New creates a new API server. cache may be nil, which disables live site caching.
func New(cfg *Config, store storage.Storage, cache sitecache.Cache) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("JWT secret is required")
	}
	if cache == nil {
		cache = sitecache.Nop{}
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		storage:       store,
		cache:         cache,
		log:           logger.With("api"),
		jwt:           auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL),
		lockout:       auth.NewLockoutTracker(cfg.LockoutThreshold, cfg.LockoutDuration),
		ipLimiter:     middleware.NewRateLimiter(cfg.RateLimitPerIP, 0),
		userLimiter:   middleware.NewRateLimiter(cfg.RateLimitPerUser, 0),
		healthHandler: health.NewHandler(),
	}
	s.authHandler = auth.NewHandler(store, s.jwt, s.lockout, auth.Settings{
		RefreshTTL: cfg.RefreshTokenTTL,
		Password:   cfg.Password,
		BcryptCost: cfg.BcryptCost,
	})

	s.healthHandler.RegisterChecker(health.NewStorageChecker(store))
	s.healthHandler.RegisterChecker(health.NewCacheChecker(cache))

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.setupRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if cfg.TLSEnabled {
		s.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Tokens exposes the refresh token service for scheduled cleanup.
func (s *Server) Tokens() *auth.TokenService {
	return s.authHandler.Tokens()
}

// Run starts the HTTP server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.log.Info().Str("address", s.config.Address).Str("public_url", s.config.PublicBaseURL).Msg("HTTP API listening")
		var err error
		if s.config.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down HTTP API server")
		defer s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		s.Close()
		return err
	}
}

// Close stops background janitors. It does not close storage or the cache.
func (s *Server) Close() {
	s.lockout.Stop()
	s.ipLimiter.Stop()
	s.userLimiter.Stop()
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	s.healthHandler.RegisterChecker(c)
}
