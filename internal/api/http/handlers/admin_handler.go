package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/api/dto"
	"github.com/spec-kit/desk-bridge/internal/domain"
	"github.com/spec-kit/desk-bridge/internal/repository"
	"github.com/spec-kit/desk-bridge/internal/telegram"
	apperrors "github.com/spec-kit/desk-bridge/pkg/util/errorutil"
)

// JournalReader lists recorded relay outcomes.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

// AdminHandler exposes operator endpoints.
type AdminHandler struct {
	webhooks     telegram.WebhookManager
	journal      JournalReader
	associations repository.AssociationRepository
	publicURL    string
	logger       *zap.Logger
}

// AdminDependencies bundles collaborators for the admin handler.
type AdminDependencies struct {
	Webhooks     telegram.WebhookManager
	Journal      JournalReader
	Associations repository.AssociationRepository
	PublicURL    string
	Logger       *zap.Logger
}

// NewAdminHandler constructs handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{
		webhooks:     deps.Webhooks,
		journal:      deps.Journal,
		associations: deps.Associations,
		publicURL:    deps.PublicURL,
		logger:       deps.Logger,
	}
}

// SetupWebhook POST /admin/setup-webhook.
func (h *AdminHandler) SetupWebhook(c *fiber.Ctx) error {
	var req dto.SetupWebhookRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	base := req.BaseURL
	if base == "" {
		base = h.publicURL
	}
	target, err := telegram.WebhookURL(base)
	if err != nil {
		return err
	}

	if err := h.webhooks.SetWebhook(c.UserContext(), target); err != nil {
		return h.mapTelegramError(err)
	}
	h.logger.Info("telegram webhook configured", zap.String("url", target))
	return c.JSON(fiber.Map{"data": dto.SetupWebhookResponse{Success: true, WebhookURL: target}})
}

// WebhookInfo GET /admin/webhook-info.
func (h *AdminHandler) WebhookInfo(c *fiber.Ctx) error {
	info, err := h.webhooks.WebhookInfo(c.UserContext())
	if err != nil {
		return h.mapTelegramError(err)
	}
	return c.JSON(fiber.Map{"data": dto.WebhookInfoResponse{
		URL:                  info.URL,
		PendingUpdateCount:   info.PendingUpdateCount,
		LastErrorDate:        info.LastErrorDate,
		LastErrorMessage:     info.LastErrorMessage,
		MaxConnections:       info.MaxConnections,
		HasCustomCertificate: info.HasCustomCertificate,
	}})
}

// Journal GET /admin/journal?limit=N.
func (h *AdminHandler) Journal(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	entries, err := h.journal.Recent(c.UserContext(), limit)
	if err != nil {
		return err
	}
	items := make([]dto.JournalEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewJournalEntryResponse(e))
	}
	return c.JSON(fiber.Map{"data": items})
}

// MessageTicket GET /admin/messages/:chat_id/:message_id.
func (h *AdminHandler) MessageTicket(c *fiber.Ctx) error {
	chatID, messageID, err := dto.ParseMessageRef(c.Params("chat_id"), c.Params("message_id"))
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	assoc, err := h.associations.Get(c.UserContext(), domain.MessageKey(chatID, messageID))
	if errors.Is(err, repository.ErrAssociationNotFound) {
		return apperrors.NewNotFound("no ticket recorded for message")
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MessageTicketResponse{
		ChatID:       chatID,
		MessageID:    messageID,
		TicketID:     assoc.TicketID,
		TicketNumber: assoc.TicketNumber,
		CreatedAt:    assoc.CreatedAt,
	}})
}

func (h *AdminHandler) mapTelegramError(err error) error {
	if errors.Is(err, telegram.ErrNotConfigured) {
		return apperrors.NewServiceUnavailable("telegram bot not configured")
	}
	return err
}
