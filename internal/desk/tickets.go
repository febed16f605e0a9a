package desk

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spec-kit/desk-bridge/internal/domain"
)

// TicketAPI creates tickets in a single configured department.
type TicketAPI struct {
	client       Doer
	departmentID string
}

// NewTicketAPI constructs the API wrapper.
func NewTicketAPI(client Doer, departmentID string) *TicketAPI {
	return &TicketAPI{client: client, departmentID: departmentID}
}

type createTicketRequest struct {
	Subject      string               `json:"subject"`
	Description  string               `json:"description"`
	DepartmentID string               `json:"departmentId"`
	ContactID    string               `json:"contactId"`
	Channel      domain.TicketChannel `json:"channel"`
	Status       domain.TicketStatus  `json:"status"`
}

// CreateTicket opens a chat-channel ticket linked to contactID.
func (a *TicketAPI) CreateTicket(ctx context.Context, contactID, subject, description string) (*domain.Ticket, error) {
	body := createTicketRequest{
		Subject:      subject,
		Description:  description,
		DepartmentID: a.departmentID,
		ContactID:    contactID,
		Channel:      domain.TicketChannelChat,
		Status:       domain.TicketStatusOpen,
	}
	resp, err := a.client.Do(ctx, Request{
		Operation: OpTicketCreate,
		Method:    http.MethodPost,
		Path:      "/api/v1/tickets",
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Subject:      body.Subject,
		Description:  body.Description,
		DepartmentID: body.DepartmentID,
		ContactID:    body.ContactID,
		Channel:      body.Channel,
		Status:       body.Status,
	}
	if err := resp.Decode(ticket); err != nil {
		return nil, fmt.Errorf("decode ticket create: %w", err)
	}
	if ticket.ID == "" && ticket.TicketNumber == "" {
		return nil, errors.New("ticket create returned neither id nor number")
	}
	return ticket, nil
}
