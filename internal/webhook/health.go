package webhook

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/redhat-data-and-ai/glmr/internal/config"
)

// ServiceName is reported by the health endpoints
const ServiceName = "glmr-webhook"

// HealthHandler handles health check requests
type HealthHandler struct {
	config    *config.Config
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		config:    cfg,
		startTime: time.Now(),
	}
}

// HandleHealth returns liveness and basic configuration state
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	uptime := time.Since(h.startTime)

	return c.JSON(fiber.Map{
		"status":         "healthy",
		"service":        ServiceName,
		"uptime_seconds": int64(uptime.Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"gitlab_url":     h.config.GitLab.BaseURL,
		"gitlab_token":   h.config.HasGitLabToken(),
	})
}

// HandleReady returns readiness status for Kubernetes
func (h *HealthHandler) HandleReady(c *fiber.Ctx) error {
	ready := fiber.Map{
		"ready":        true,
		"service":      ServiceName,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"gitlab_token": h.config.HasGitLabToken(),
	}

	// Without a token every GitLab call would fail with 401
	if !h.config.HasGitLabToken() {
		ready["ready"] = false
		ready["reason"] = "GitLab token not configured"
		return c.Status(fiber.StatusServiceUnavailable).JSON(ready)
	}

	return c.JSON(ready)
}
