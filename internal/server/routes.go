package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openmedrec/medrec-go/internal/api"
)

// setupRoutes builds the router. Registration, login, and health are the
// only public endpoints; everything else requires a valid bearer token.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.withLogger)

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Get("/healthz", api.HealthHandler)

		// Registration and login are the credential-guessing surface; they
		// get the per-IP limiter on top of the per-account lockout.
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			r.Post("/accounts", s.accountHandler.Register)
			r.Post("/auth/login", s.authHandler.Login)
		})

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.deps.Tokens))

			r.Post("/auth/logout", s.authHandler.Logout)
			r.Post("/accounts/password", s.authHandler.ChangePassword)
			r.Delete("/accounts/me", s.accountHandler.Delete)

			r.Route("/patients", func(r chi.Router) {
				r.Post("/", s.patientHandler.Create)
				r.Route("/{patientID}", func(r chi.Router) {
					r.Get("/", s.patientHandler.Get)
					r.Put("/", s.patientHandler.Update)
					r.Delete("/", s.patientHandler.Delete)

					r.Post("/shares", s.shareHandler.Create)
					r.Get("/shares", s.shareHandler.List)
				})
			})

			r.Route("/shares/{shareID}", func(r chi.Router) {
				r.Put("/", s.shareHandler.Update)
				r.Delete("/", s.shareHandler.Delete)
			})
		})
	})

	return r
}
