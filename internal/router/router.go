package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/gharnest/gharnest/config"
	"github.com/gharnest/gharnest/internal/api/auth"
	"github.com/gharnest/gharnest/internal/api/user"
)

// Config carries the handlers and middleware constructors the router mounts.
type Config struct {
	AuthHandler        *auth.AuthHandler
	UserHandler        *user.UserHandler
	Authenticate       func(next http.Handler) http.Handler
	OptionalAuth       func(next http.Handler) http.Handler
	RequireAdmin       func(next http.Handler) http.Handler
	RateLimitPerMinute int
}

// SetupRouter builds the application router. Server-wide middleware
// (request ID, logging, recoverer) is applied in main before mounting.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	limit := cfg.RateLimitPerMinute
	if limit <= 0 {
		limit = config.DefaultRateLimitPerMinute
	}
	// Credential-guessing endpoints are throttled per client IP.
	credentialLimiter := httprate.LimitByIP(limit, time.Minute)

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes.
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.With(credentialLimiter).Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.Refresh)
			r.With(credentialLimiter).Post("/auth/password-reset-request", cfg.AuthHandler.RequestPasswordReset)
			r.Post("/auth/password-reset-confirm", cfg.AuthHandler.ConfirmPasswordReset)
		})

		// Public profile view. Optional auth lets owners see their own
		// contact details.
		r.With(cfg.OptionalAuth).Get("/users/{userID}/profile", cfg.UserHandler.GetProfile)

		// Protected routes.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Put("/auth/change-password", cfg.AuthHandler.ChangePassword)
			r.Put("/users/{userID}/profile", cfg.UserHandler.UpdateProfile)
			r.Patch("/users/{userID}/profile", cfg.UserHandler.UpdateProfile)
		})

		// Admin-gated role management.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)
			r.Use(cfg.RequireAdmin)

			r.Post("/users/{userID}/roles", cfg.UserHandler.AddRole)
			r.Delete("/users/{userID}/roles/{role}", cfg.UserHandler.RemoveRole)
		})
	})

	return r
}
