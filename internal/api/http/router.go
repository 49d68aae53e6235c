package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdeck/sla-engine/internal/api/http/handlers"
	"github.com/opsdeck/sla-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Sla            *handlers.SlaHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	internal := app.Group("/internal", cfg.AuthMiddleware.Handle)
	internal.Post("/sla/run", cfg.Sla.Run)
	internal.Get("/tickets/:id/sla", cfg.Sla.TicketClock)

	internal.Post("/calendars", cfg.Admin.CreateCalendar)
	internal.Post("/sla/definitions", cfg.Admin.CreateSla)
	internal.Post("/sla/definitions/:id/publish", cfg.Admin.PublishSla)
	internal.Post("/sla/definitions/:id/bind/:ticketId", cfg.Admin.BindSla)
}
