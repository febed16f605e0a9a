package domain

import (
	"strconv"
	"time"
)

// MessageTicket associates a chat message with the ticket it created.
type MessageTicket struct {
	MessageKey   string    `json:"message_key"`
	TicketID     string    `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessageKey builds the association key for a chat message.
func MessageKey(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}
