package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/presence-auth-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Root)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	users := app.Group("/api/users")
	users.Post("/signup", cfg.Users.Signup)
	users.Post("/login", cfg.Users.Login)
	users.Get("/online", cfg.Users.Online)

	authenticate := cfg.AuthMiddleware.Handle
	users.Get("/verify", authenticate, cfg.Users.Verify)
	users.Post("/heartbeat", authenticate, cfg.Users.Heartbeat)
	users.Post("/logout", authenticate, cfg.Users.Logout)
}
