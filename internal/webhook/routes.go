package webhook

import (
	"github.com/gofiber/fiber/v2"

	"github.com/redhat-data-and-ai/glmr/internal/config"
)

// RegisterRoutes mounts the webhook and health endpoints on app
func RegisterRoutes(app *fiber.App, cfg *config.Config, client Client) {
	health := NewHealthHandler(cfg)
	summaryHandler := NewMRSummaryHandler(client)

	app.Get("/health", health.HandleHealth)
	app.Get("/ready", health.HandleReady)
	app.Post("/webhook", summaryHandler.HandleWebhook)
}
