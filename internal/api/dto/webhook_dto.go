package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/spec-kit/desk-bridge/internal/domain"
)

// FlexString accepts a JSON string or number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("expected string or number")
	}
	*f = FlexString(n.String())
	return nil
}

// DeskWebhookEvent is one ticket-system notification.
type DeskWebhookEvent struct {
	EventType    string     `json:"eventType"`
	TicketNumber FlexString `json:"ticketNumber"`
	Content      string     `json:"content"`
	Author       string     `json:"author"`
}

// ParseDeskEvents decodes a single event object or an array of them.
func ParseDeskEvents(body []byte) ([]DeskWebhookEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var batch []DeskWebhookEvent
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	var single DeskWebhookEvent
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []DeskWebhookEvent{single}, nil
}

// WebhookAck is the body of every webhook response.
type WebhookAck struct {
	OK bool `json:"ok"`
}

// DeskWebhookStatus answers the desk's endpoint validation probe.
type DeskWebhookStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse reports whether the bridge is configured.
type HealthResponse struct {
	Status             string `json:"status"`
	TelegramConfigured bool   `json:"telegram_configured"`
	ZohoConfigured     bool   `json:"zoho_configured"`
}

// SetupWebhookRequest optionally overrides the configured public URL.
type SetupWebhookRequest struct {
	BaseURL string `json:"base_url"`
}

// SetupWebhookResponse reports the registered webhook.
type SetupWebhookResponse struct {
	Success    bool   `json:"success"`
	WebhookURL string `json:"webhook_url"`
}

// WebhookInfoResponse mirrors the Bot API webhook info.
type WebhookInfoResponse struct {
	URL                  string `json:"url"`
	PendingUpdateCount   int    `json:"pending_update_count"`
	LastErrorDate        int    `json:"last_error_date,omitempty"`
	LastErrorMessage     string `json:"last_error_message,omitempty"`
	MaxConnections       int    `json:"max_connections,omitempty"`
	HasCustomCertificate bool   `json:"has_custom_certificate"`
}

// JournalEntryResponse is one journal row.
type JournalEntryResponse struct {
	ID           string    `json:"id"`
	Direction    string    `json:"direction"`
	Outcome      string    `json:"outcome"`
	Stage        string    `json:"stage"`
	ChatID       int64     `json:"chat_id,omitempty"`
	MessageID    int       `json:"message_id,omitempty"`
	TicketNumber string    `json:"ticket_number,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewJournalEntryResponse maps a domain entry.
func NewJournalEntryResponse(e domain.JournalEntry) JournalEntryResponse {
	return JournalEntryResponse{
		ID:           e.ID,
		Direction:    string(e.Direction),
		Outcome:      e.Outcome,
		Stage:        e.Stage,
		ChatID:       e.ChatID,
		MessageID:    e.MessageID,
		TicketNumber: e.TicketNumber,
		Detail:       e.Detail,
		CreatedAt:    e.CreatedAt,
	}
}

// MessageTicketResponse reports the ticket a chat message created.
type MessageTicketResponse struct {
	ChatID       int64     `json:"chat_id"`
	MessageID    int       `json:"message_id"`
	TicketID     string    `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParseMessageRef validates the chat and message id path parameters.
func ParseMessageRef(chatID, messageID string) (int64, int, error) {
	chat, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, 0, errors.New("chat_id must be an integer")
	}
	msg, err := strconv.Atoi(messageID)
	if err != nil {
		return 0, 0, errors.New("message_id must be an integer")
	}
	return chat, msg, nil
}
