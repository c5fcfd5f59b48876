package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Requests *handlers.RequestsHandler
	Triggers *handlers.TriggersHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	requests := app.Group("/api/crm/requests")

	triggers := requests.Group("/trigger")
	triggers.Post("/payment-completed", cfg.Triggers.PaymentCompleted)
	triggers.Post("/receive", cfg.Triggers.Receive)
	triggers.Post("/send/:requestId", cfg.Triggers.Send)

	requests.Post("/", cfg.Requests.Create)
	requests.Get("/", cfg.Requests.List)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Get("/:id/history", cfg.Requests.History)
	requests.Put("/:id/status", cfg.Requests.UpdateStatus)
	requests.Post("/:id/forward", cfg.Requests.Forward)
}
