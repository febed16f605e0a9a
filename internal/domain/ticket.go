package domain

// TicketStatus enumerates the status values the bridge sets on creation.
type TicketStatus string

const (
	TicketStatusOpen TicketStatus = "Open"
)

// TicketChannel identifies where a ticket originated inside the ticket system.
type TicketChannel string

const (
	TicketChannelChat TicketChannel = "Chat"
)

// Ticket is a ticket-system record created from an inbound chat message. Its lifecycle after
// creation belongs to the ticket system.
type Ticket struct {
	ID           string        `json:"id"`
	TicketNumber string        `json:"ticketNumber"`
	Subject      string        `json:"subject"`
	Description  string        `json:"description"`
	DepartmentID string        `json:"departmentId"`
	ContactID    string        `json:"contactId"`
	Channel      TicketChannel `json:"channel"`
	Status       TicketStatus  `json:"status"`
}

// DisplayNumber returns the ticket number or N/A when the ticket system omitted it.
func (t *Ticket) DisplayNumber() string {
	if t == nil || t.TicketNumber == "" {
		return "N/A"
	}
	return t.TicketNumber
}
