package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/desk-bridge/internal/api/dto"
	"github.com/spec-kit/desk-bridge/internal/config"
)

// Pinger is an optional backing service checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	cfg          *config.Config
	dependencies map[string]Pinger
}

// NewHealthHandler returns a new handler instance. Only configured dependencies should be
// passed; absent ones are not probed.
func NewHealthHandler(cfg *config.Config, dependencies map[string]Pinger) *HealthHandler {
	return &HealthHandler{cfg: cfg, dependencies: dependencies}
}

// Health GET /health reports whether credentials for both platforms are present.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	telegramOK := h.cfg.Telegram.Configured()
	deskOK := h.cfg.Desk.Configured()
	status := "ok"
	if !telegramOK || !deskOK {
		status = "missing configuration"
	}
	return c.JSON(dto.HealthResponse{
		Status:             status,
		TelegramConfigured: telegramOK,
		ZohoConfigured:     deskOK,
	})
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			depStatus[name] = err.Error()
			ready = false
		} else {
			depStatus[name] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

// Home GET / serves a landing page.
func (h *HealthHandler) Home(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(`<h1>🌉 Telegram-Zoho Bridge is Running!</h1>
<p>✅ Server is active</p>
<ul>
    <li><a href="/health">Check Health</a></li>
    <li><a href="/admin/webhook-info">Check Telegram Webhook</a></li>
</ul>
`)
}
