package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/user-service/internal/api/http/handlers"
	"github.com/spec-kit/user-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	PromRegistry   *prometheus.Registry
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.PromRegistry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.PromRegistry, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)

	session := authGroup.Group("", cfg.AuthMiddleware.Handle)
	session.Get("/me", cfg.Auth.Me)
	session.Get("/verify", cfg.Auth.Verify)
	session.Post("/refresh", cfg.Auth.Refresh)
	session.Post("/logout", cfg.Auth.Logout)

	users := api.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/", auth.RequireAdmin(), cfg.Users.List)
	users.Post("/", auth.RequireAdmin(), cfg.Users.Create)
	// registered before /:id so it is not captured as an id
	users.Get("/stats", auth.RequireAdmin(), cfg.Users.Stats)
	users.Get("/:id", auth.RequireSelfOrAdmin("id"), cfg.Users.Get)
	users.Put("/:id", auth.RequireSelfOrAdmin("id"), cfg.Users.Update)
	users.Delete("/:id", auth.RequireSelfOrAdmin("id"), cfg.Users.Delete)
	users.Put("/:id/password", auth.RequireSelfOrAdmin("id"), cfg.Users.ChangePassword)
	users.Patch("/:id/activate", auth.RequireAdmin(), cfg.Users.Activate)
	users.Patch("/:id/deactivate", auth.RequireAdmin(), cfg.Users.Deactivate)
}
