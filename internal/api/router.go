package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/sitecraft/internal/api/middleware"
	"github.com/good-yellow-bee/sitecraft/internal/api/projects"
	"github.com/good-yellow-bee/sitecraft/internal/api/sites"
	"github.com/good-yellow-bee/sitecraft/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Recoverer logs through the request logger, so it must run inside it.
	r.Use(middleware.RequestLogger(s.log, s.config.Verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrMethodNotAllowed)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)

		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(s.ipLimiter))
			r.Post("/signup", s.authHandler.Signup)
			r.Post("/signin", s.authHandler.Signin)
			r.Post("/refresh", s.authHandler.Refresh)
			r.Post("/logout", s.authHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(s.jwt))
			r.Use(middleware.RateLimitByUser(s.userLimiter))

			r.Mount("/users", users.NewHandler(s.storage, s.config.Password, s.config.BcryptCost).Routes())
			r.Mount("/projects", projects.NewHandler(s.storage, s.cache, s.config.PublicBaseURL).Routes())
		})
	})

	siteHandler := sites.NewHandler(s.storage.Projects(), s.cache)
	r.With(middleware.SiteHeaders).Get("/sites/{slug}", siteHandler.Serve)

	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
