package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-auth-service/internal/config"
	"github.com/spec-kit/presence-auth-service/internal/observability"
)

// ServerConfig bundles what NewServer needs to build the fiber app.
type ServerConfig struct {
	AppName        string
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	CORS           config.CORSConfig
	RequestTimeout time.Duration
	Routes         RouteConfig
}

// NewServer builds the fiber app with middlewares and routes registered.
func NewServer(cfg ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, cfg.Logger, cfg.Metrics, cfg.CORS, cfg.RequestTimeout)
	RegisterRoutes(app, cfg.Routes)
	return app
}
