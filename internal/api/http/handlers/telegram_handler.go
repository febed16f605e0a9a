package handlers

import (
	"context"
	"encoding/json"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/api/dto"
	"github.com/spec-kit/desk-bridge/internal/service"
)

// ChatEventRouter handles chat platform updates.
type ChatEventRouter interface {
	OnChatEvent(ctx context.Context, update tgbotapi.Update) service.Outcome
}

// TelegramHandler receives the bot webhook.
type TelegramHandler struct {
	router ChatEventRouter
	logger *zap.Logger
}

// NewTelegramHandler constructs handler.
func NewTelegramHandler(router ChatEventRouter, logger *zap.Logger) *TelegramHandler {
	return &TelegramHandler{router: router, logger: logger}
}

// Webhook POST /telegram-webhook. Always answers 200 so Telegram does not redeliver.
func (h *TelegramHandler) Webhook(c *fiber.Ctx) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		h.logger.Warn("unparsable telegram update", zap.Error(err), zap.Int("bytes", len(c.Body())))
		return c.JSON(dto.WebhookAck{OK: false})
	}

	outcome := h.router.OnChatEvent(c.UserContext(), update)
	return c.JSON(dto.WebhookAck{OK: outcome != service.OutcomeFailed})
}
