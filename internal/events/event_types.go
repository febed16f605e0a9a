package events

import (
	"time"

	"github.com/spec-kit/desk-bridge/internal/domain"
)

// EventType enumerates relay outcomes published by the router.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketCreateFailed EventType = "ticket_create_failed"
	EventChatIgnored        EventType = "chat_message_ignored"
	EventReplyRelayed       EventType = "reply_relayed"
	EventReplyRelayFailed   EventType = "reply_relay_failed"
	EventDeskIgnored        EventType = "desk_event_ignored"
)

// AllEventTypes lists every type, for subscribers interested in all of them.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketCreateFailed,
	EventChatIgnored,
	EventReplyRelayed,
	EventReplyRelayFailed,
	EventDeskIgnored,
}

// Event describes how a single webhook delivery was handled.
type Event struct {
	ID           string                `json:"id"`
	Type         EventType             `json:"type"`
	Direction    domain.RelayDirection `json:"direction"`
	Outcome      string                `json:"outcome"`
	Stage        string                `json:"stage"`
	ChatID       int64                 `json:"chat_id,omitempty"`
	MessageID    int                   `json:"message_id,omitempty"`
	TicketNumber string                `json:"ticket_number,omitempty"`
	Detail       string                `json:"detail,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
}
