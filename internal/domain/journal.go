package domain

import "time"

// RelayDirection indicates which way a delivery travelled.
type RelayDirection string

const (
	DirectionChatToDesk RelayDirection = "chat_to_desk"
	DirectionDeskToChat RelayDirection = "desk_to_chat"
)

// JournalEntry is an immutable record of how one webhook delivery was handled.
type JournalEntry struct {
	ID           string
	Direction    RelayDirection
	Outcome      string
	Stage        string
	ChatID       int64
	MessageID    int
	TicketNumber string
	Detail       string
	CreatedAt    time.Time
}
