// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmedrec/medrec-go/internal/api"
	"github.com/openmedrec/medrec-go/internal/cache/memory"
	"github.com/openmedrec/medrec-go/internal/config"
	"github.com/openmedrec/medrec-go/internal/identity"
	"github.com/openmedrec/medrec-go/internal/logutil"
	"github.com/openmedrec/medrec-go/internal/ratelimit"
	"github.com/openmedrec/medrec-go/internal/sharing"
	"github.com/openmedrec/medrec-go/internal/store"
)

// ErrMissingDep is returned when a required dependency is nil.
var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	Driver        store.Driver
	Authenticator *identity.PasswordAuthenticator
	Tokens        *identity.AccessTokenManager
	Accounts      *identity.AccountService
	Registry      *sharing.Registry
	Resolver      *sharing.Resolver
}

func (d *Deps) validate() error {
	if d == nil || d.Driver == nil || d.Authenticator == nil || d.Tokens == nil ||
		d.Accounts == nil || d.Registry == nil || d.Resolver == nil {
		return ErrMissingDep
	}
	return nil
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	deps       *Deps

	authHandler    *api.AuthHandler
	accountHandler *api.AccountHandler
	patientHandler *api.PatientHandler
	shareHandler   *api.ShareHandler

	limiter      *ratelimit.Limiter
	limiterCache *memory.Cache
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:            cfg,
		logger:         logutil.NoopIfNil(logger),
		deps:           deps,
		authHandler:    api.NewAuthHandler(deps.Authenticator, deps.Tokens, deps.Accounts),
		accountHandler: api.NewAccountHandler(deps.Accounts, deps.Registry, deps.Driver),
		patientHandler: api.NewPatientHandler(deps.Driver, deps.Registry, deps.Resolver),
		shareHandler:   api.NewShareHandler(deps.Registry, deps.Resolver),
	}

	if cfg.RateLimit.Enabled {
		s.limiterCache = memory.New(cfg.RateLimit.Window(), time.Minute)
		s.limiter = ratelimit.New(s.limiterCache, &ratelimit.Config{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            cfg.RateLimit.Window(),
			KeyPrefix:         "auth:",
		})
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.cfg.ListenAddr, "store", s.deps.Driver.Name())
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if s.limiterCache != nil {
		defer s.limiterCache.Close()
	}
	return s.httpServer.Shutdown(ctx)
}
