package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-bot/internal/api/http/handlers"
	"github.com/spec-kit/support-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	OpsTickets     *handlers.OpsTicketsHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/healthz", cfg.Health.Live)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	ops := app.Group("/api/v1/ops", cfg.AuthMiddleware.Handle)
	ops.Get("/tickets/unassigned", cfg.OpsTickets.Unassigned)
	ops.Get("/tickets/mine", cfg.OpsTickets.Mine)
	ops.Get("/tickets/:number", cfg.OpsTickets.ByNumber)
	ops.Get("/metrics", cfg.Metrics.Snapshot)
}
