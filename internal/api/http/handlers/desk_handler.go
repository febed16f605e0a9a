package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/api/dto"
	"github.com/spec-kit/desk-bridge/internal/service"
)

// TicketEventRouter handles ticket-system notifications.
type TicketEventRouter interface {
	OnTicketEvent(ctx context.Context, event service.DeskEvent) service.Outcome
}

// DeskHandler receives the ticket-system webhook.
type DeskHandler struct {
	router TicketEventRouter
	logger *zap.Logger
}

// NewDeskHandler constructs handler.
func NewDeskHandler(router TicketEventRouter, logger *zap.Logger) *DeskHandler {
	return &DeskHandler{router: router, logger: logger}
}

// Validate GET /zoho-webhook.
func (h *DeskHandler) Validate(c *fiber.Ctx) error {
	h.logger.Info("desk webhook validation request")
	return c.JSON(dto.DeskWebhookStatus{Status: "ok", Message: "Webhook endpoint is active"})
}

// Webhook POST /zoho-webhook. Events in a batch are handled in order; the ack is false when
// any of them failed. Always answers 200.
func (h *DeskHandler) Webhook(c *fiber.Ctx) error {
	batch, err := dto.ParseDeskEvents(c.Body())
	if err != nil {
		h.logger.Warn("unparsable desk webhook", zap.Error(err), zap.Int("bytes", len(c.Body())))
		return c.JSON(dto.WebhookAck{OK: false})
	}

	ok := true
	for _, event := range batch {
		outcome := h.router.OnTicketEvent(c.UserContext(), service.DeskEvent{
			EventType:    event.EventType,
			TicketNumber: string(event.TicketNumber),
			Content:      event.Content,
			Author:       event.Author,
		})
		if outcome == service.OutcomeFailed {
			ok = false
		}
	}
	return c.JSON(dto.WebhookAck{OK: ok})
}
