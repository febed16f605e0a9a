package service

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/desk-bridge/internal/domain"
	"github.com/spec-kit/desk-bridge/internal/events"
)

type stubResolver struct {
	id    string
	err   error
	calls int
}

func (s *stubResolver) Resolve(context.Context, domain.ChatUser) (string, error) {
	s.calls++
	return s.id, s.err
}

type stubTickets struct {
	ticket   *domain.Ticket
	err      error
	subjects []string
}

func (s *stubTickets) CreateTicket(_ context.Context, contactID, subject, description string) (*domain.Ticket, error) {
	s.subjects = append(s.subjects, subject)
	if s.err != nil {
		return nil, s.err
	}
	t := *s.ticket
	t.ContactID, t.Subject, t.Description = contactID, subject, description
	return &t, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []domain.ChatMessage
	err  error
}

func (s *recordingSender) SendMessage(_ context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Sent() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.sent...)
}

type failingAssociations struct{}

func (failingAssociations) Save(context.Context, domain.MessageTicket) error {
	return errors.New("store down")
}

func (failingAssociations) Get(context.Context, string) (*domain.MessageTicket, error) {
	return nil, errors.New("store down")
}

type panickingRelay struct{ Relay }

func (panickingRelay) CreateTicket(context.Context, domain.ChatUser, string, string) (*domain.Ticket, error) {
	panic("boom")
}

func (panickingRelay) FormatReply(domain.RelayEvent) domain.ChatMessage {
	panic("boom")
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) Last() events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events[len(d.events)-1]
}

type expiringRelay struct{ Relay }

func (expiringRelay) CreateTicket(ctx context.Context, _ domain.ChatUser, _, _ string) (*domain.Ticket, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
