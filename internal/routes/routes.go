package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marminbh/statuswatch/internal/handlers"
)

// SetupRoutes configures all application routes with dependencies
func SetupRoutes(app *fiber.App, webhooks *handlers.WebhookHandler, health *handlers.HealthHandler) {
	app.Get("/", health.Root)
	app.Get("/health", health.HealthCheck)
	app.Get("/stats", health.Stats)

	webhook := app.Group("/webhook")
	{
		webhook.Post("/incident-io", webhooks.IncidentIO)
		webhook.Post("/generic/:provider", webhooks.Generic)
	}
}
