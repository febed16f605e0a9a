package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/domain"
	"github.com/spec-kit/desk-bridge/internal/repository"
	"github.com/spec-kit/desk-bridge/internal/telegram"
	apperrors "github.com/spec-kit/desk-bridge/pkg/util/errorutil"
)

// ContactResolver maps a chat user onto a ticket-system contact id.
type ContactResolver interface {
	Resolve(ctx context.Context, user domain.ChatUser) (string, error)
}

// TicketCreator creates tickets in the ticket system.
type TicketCreator interface {
	CreateTicket(ctx context.Context, contactID, subject, description string) (*domain.Ticket, error)
}

// TicketRelay turns chat messages into tickets and ticket events into chat messages.
type TicketRelay struct {
	contacts     ContactResolver
	tickets      TicketCreator
	sender       telegram.Sender
	associations repository.AssociationRepository
	formatter    *contentFormatter
	logger       *zap.Logger
}

// TicketRelayDependencies bundles collaborators for the relay.
type TicketRelayDependencies struct {
	Contacts     ContactResolver
	Tickets      TicketCreator
	Sender       telegram.Sender
	Associations repository.AssociationRepository
	Logger       *zap.Logger
}

// NewTicketRelay builds the relay. Associations may be nil.
func NewTicketRelay(deps TicketRelayDependencies) *TicketRelay {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketRelay{
		contacts:     deps.Contacts,
		tickets:      deps.Tickets,
		sender:       deps.Sender,
		associations: deps.Associations,
		formatter:    newContentFormatter(),
		logger:       logger,
	}
}

// CreateTicket opens a ticket for text sent by user. Empty text is skipped and yields (nil, nil).
// messageKey, when set, is remembered against the created ticket.
func (r *TicketRelay) CreateTicket(ctx context.Context, user domain.ChatUser, text, messageKey string) (*domain.Ticket, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	contactID, err := r.contacts.Resolve(ctx, user)
	if err != nil {
		r.logger.Error("contact resolution failed",
			zap.String("stage", "contact"),
			zap.Int64("user_id", user.ID),
			zap.Error(err))
		var bridgeErr *apperrors.BridgeError
		if errors.As(err, &bridgeErr) {
			return nil, err
		}
		return nil, apperrors.NewBridgeError(apperrors.CodeContactResolutionFailed, "failed to resolve contact", err)
	}

	subject := "Telegram: " + user.DisplayName()
	ticket, err := r.tickets.CreateTicket(ctx, contactID, subject, text)
	if err != nil {
		r.logger.Error("ticket creation failed",
			zap.String("stage", "ticket"),
			zap.Int64("user_id", user.ID),
			zap.String("contact_id", contactID),
			zap.Error(err))
		return nil, apperrors.NewBridgeError(apperrors.CodeTicketCreationFailed, "failed to create ticket", err)
	}

	r.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.Int64("user_id", user.ID))
	r.remember(ctx, messageKey, ticket)
	return ticket, nil
}

func (r *TicketRelay) remember(ctx context.Context, messageKey string, ticket *domain.Ticket) {
	if r.associations == nil || messageKey == "" {
		return
	}
	err := r.associations.Save(ctx, domain.MessageTicket{
		MessageKey:   messageKey,
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
	})
	if err != nil {
		r.logger.Warn("failed to record message association",
			zap.String("message_key", messageKey),
			zap.String("ticket_number", ticket.TicketNumber),
			zap.Error(err))
	}
}

// Dispatch sends msg to the configured chat group. It does not retry.
func (r *TicketRelay) Dispatch(ctx context.Context, msg domain.ChatMessage) error {
	if err := r.sender.SendMessage(ctx, msg); err != nil {
		r.logger.Error("chat dispatch failed", zap.String("stage", "dispatch"), zap.Error(err))
		return apperrors.NewBridgeError(apperrors.CodeRelayDispatchFailed, "failed to send chat message", err)
	}
	return nil
}
