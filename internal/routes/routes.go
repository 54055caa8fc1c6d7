package routes

import (
	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/handlers"
	"github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/go-chi/chi/v5"
)

// Handlers groups everything RegisterRoutes mounts. Admin and TokenManager
// may be nil, in which case the operator API is not mounted.
type Handlers struct {
	LoginAttempt *handlers.LoginAttemptHandler
	Health       *handlers.HealthHandler
	Admin        *handlers.AdminLockoutHandler
	TokenManager *auth.TokenManager
	RateLimit    middleware.RateLimitConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers) {
	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(h.RateLimit)).Post("/check-login-attempt", h.LoginAttempt.CheckLoginAttempt)
	router.Get("/health", h.Health.Health)

	if h.Admin == nil || h.TokenManager == nil {
		return
	}

	// Operator routes - admin bearer token required
	router.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(h.TokenManager))
		r.Use(auth.RequireRole(models.RoleAdmin))

		r.Get("/lockouts/{identifier}", h.Admin.GetLockoutStatus)
		r.Post("/lockouts/{identifier}/unlock", h.Admin.UnlockIdentifier)
		r.Get("/alerts", h.Admin.ListAlerts)
	})
}
