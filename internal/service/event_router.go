package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/domain"
	"github.com/spec-kit/desk-bridge/internal/events"
	"github.com/spec-kit/desk-bridge/internal/observability"
)

// notifyTimeout bounds chat notices sent after the request context may already have expired.
const notifyTimeout = 10 * time.Second

// Outcome reports how a webhook delivery was handled.
type Outcome string

const (
	OutcomeHandled Outcome = "handled"
	OutcomeIgnored Outcome = "ignored"
	OutcomeFailed  Outcome = "failed"
)

// Relay is the part of TicketRelay the router drives.
type Relay interface {
	CreateTicket(ctx context.Context, user domain.ChatUser, text, messageKey string) (*domain.Ticket, error)
	FormatReply(event domain.RelayEvent) domain.ChatMessage
	Dispatch(ctx context.Context, msg domain.ChatMessage) error
}

// DeskEvent is a ticket-system notification as received on the desk webhook.
type DeskEvent struct {
	EventType    string
	TicketNumber string
	Content      string
	Author       string
}

// EventRouter classifies inbound deliveries and drives the relay. Its methods never panic and
// never return errors; failures are logged and reported as OutcomeFailed.
type EventRouter struct {
	groupChatID int64
	relay       Relay
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// EventRouterDependencies bundles collaborators for the router.
type EventRouterDependencies struct {
	GroupChatID int64
	Relay       Relay
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewEventRouter builds the router.
func NewEventRouter(deps EventRouterDependencies) *EventRouter {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRouter{
		groupChatID: deps.GroupChatID,
		relay:       deps.Relay,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// OnChatEvent opens a ticket for a text message posted in the configured group.
func (r *EventRouter) OnChatEvent(ctx context.Context, update tgbotapi.Update) (outcome Outcome) {
	event := events.Event{Direction: domain.DirectionChatToDesk, Stage: "receive"}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while handling chat event", zap.Any("panic", rec), zap.Int("update_id", update.UpdateID))
			event.Type, event.Detail = events.EventTicketCreateFailed, fmt.Sprint(rec)
			outcome = OutcomeFailed
		}
		r.publish(ctx, event, outcome)
	}()

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		event.Type, event.Stage, event.Detail = events.EventChatIgnored, "filter", "no message"
		return OutcomeIgnored
	}
	event.ChatID, event.MessageID = msg.Chat.ID, msg.MessageID
	logger := r.logger.With(zap.Int64("chat_id", msg.Chat.ID), zap.Int("message_id", msg.MessageID))

	if msg.Chat.ID != r.groupChatID {
		logger.Debug("ignoring message from foreign chat")
		event.Type, event.Stage, event.Detail = events.EventChatIgnored, "filter", "foreign chat"
		return OutcomeIgnored
	}
	if msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		logger.Debug("ignoring non-text message")
		event.Type, event.Stage, event.Detail = events.EventChatIgnored, "filter", "no text"
		return OutcomeIgnored
	}

	user := domain.ChatUser{
		ID:        msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
	logger = logger.With(zap.Int64("user_id", user.ID))

	ticket, err := r.relay.CreateTicket(ctx, user, msg.Text, domain.MessageKey(msg.Chat.ID, msg.MessageID))
	if err != nil {
		logger.Error("failed to create ticket from chat message", zap.Error(err))
		if dispatchErr := r.notify(ctx, FailureNotice()); dispatchErr != nil {
			logger.Warn("failed to send failure notice", zap.Error(dispatchErr))
		}
		event.Type, event.Stage, event.Detail = events.EventTicketCreateFailed, "create_ticket", err.Error()
		return OutcomeFailed
	}
	if ticket == nil {
		event.Type, event.Stage, event.Detail = events.EventChatIgnored, "filter", "no text"
		return OutcomeIgnored
	}

	event.Type, event.Stage, event.TicketNumber = events.EventTicketCreated, "confirm", ticket.TicketNumber
	if err := r.notify(ctx, FormatConfirmation(ticket)); err != nil {
		logger.Warn("failed to send ticket confirmation", zap.String("ticket_number", ticket.TicketNumber), zap.Error(err))
		event.Detail = "confirmation not delivered"
	}
	return OutcomeHandled
}

// OnTicketEvent relays replies and comments to the group and ignores every other event type.
func (r *EventRouter) OnTicketEvent(ctx context.Context, in DeskEvent) (outcome Outcome) {
	event := events.Event{
		Direction:    domain.DirectionDeskToChat,
		Stage:        "classify",
		TicketNumber: in.TicketNumber,
		ChatID:       r.groupChatID,
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while handling ticket event", zap.Any("panic", rec), zap.String("event_type", in.EventType))
			event.Type, event.Detail = events.EventReplyRelayFailed, fmt.Sprint(rec)
			outcome = OutcomeFailed
		}
		r.publish(ctx, event, outcome)
	}()

	logger := r.logger.With(zap.String("event_type", in.EventType), zap.String("ticket_number", in.TicketNumber))

	kind := domain.ClassifyEventType(in.EventType)
	if !kind.Relayable() {
		logger.Debug("ignoring ticket event")
		event.Type, event.Detail = events.EventDeskIgnored, in.EventType
		return OutcomeIgnored
	}

	msg := r.relay.FormatReply(domain.RelayEvent{
		Kind:         kind,
		TicketNumber: in.TicketNumber,
		Author:       in.Author,
		Content:      in.Content,
	})
	event.Stage = "dispatch"
	if err := r.relay.Dispatch(ctx, msg); err != nil {
		logger.Error("failed to relay ticket event", zap.Error(err))
		event.Type, event.Detail = events.EventReplyRelayFailed, err.Error()
		return OutcomeFailed
	}

	logger.Info("ticket event relayed", zap.String("kind", string(kind)))
	event.Type = events.EventReplyRelayed
	return OutcomeHandled
}

// notify sends a confirmation or failure notice detached from the caller's deadline so a
// timed-out ticket request still reaches the group.
func (r *EventRouter) notify(ctx context.Context, msg domain.ChatMessage) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	return r.relay.Dispatch(ctx, msg)
}

func (r *EventRouter) publish(ctx context.Context, event events.Event, outcome Outcome) {
	event.Outcome = string(outcome)
	r.metrics.RecordRelayOutcome(string(event.Direction), string(outcome))
	if r.dispatcher == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in event subscriber", zap.Any("panic", rec), zap.String("event_type", string(event.Type)))
		}
	}()
	r.dispatcher.Publish(ctx, event)
}
