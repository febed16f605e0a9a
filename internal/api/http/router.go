package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/desk-bridge/internal/api/http/handlers"
	"github.com/spec-kit/desk-bridge/internal/auth"
	"github.com/spec-kit/desk-bridge/internal/observability"
	"github.com/spec-kit/desk-bridge/internal/telegram"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Telegram        *handlers.TelegramHandler
	Desk            *handlers.DeskHandler
	Admin           *handlers.AdminHandler
	AdminMiddleware *auth.AdminMiddleware
	Metrics         *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Home)
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))

	app.Post(telegram.WebhookPath, cfg.Telegram.Webhook)
	app.Get("/zoho-webhook", cfg.Desk.Validate)
	app.Post("/zoho-webhook", cfg.Desk.Webhook)

	admin := app.Group("/admin", cfg.AdminMiddleware.Handle)
	admin.Post("/setup-webhook", cfg.AdminMiddleware.RequireScope(auth.ScopeWebhookWrite), cfg.Admin.SetupWebhook)
	admin.Get("/webhook-info", cfg.AdminMiddleware.RequireScope(auth.ScopeWebhookRead), cfg.Admin.WebhookInfo)
	admin.Get("/journal", cfg.AdminMiddleware.RequireScope(auth.ScopeJournalRead), cfg.Admin.Journal)
	admin.Get("/messages/:chat_id/:message_id", cfg.AdminMiddleware.RequireScope(auth.ScopeJournalRead), cfg.Admin.MessageTicket)
}
