package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/domain"
	"github.com/spec-kit/desk-bridge/internal/events"
	"github.com/spec-kit/desk-bridge/internal/repository"
)

// JournalService records relay outcomes published by the router.
type JournalService struct {
	dispatcher events.Dispatcher
	journal    repository.RelayJournalRepository
	logger     *zap.Logger
}

// NewJournalService creates the service. A nil journal only logs outcomes.
func NewJournalService(dispatcher events.Dispatcher, journal repository.RelayJournalRepository, logger *zap.Logger) *JournalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalService{
		dispatcher: dispatcher,
		journal:    journal,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (j *JournalService) RegisterHandlers() {
	if j.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		j.dispatcher.Subscribe(eventType, j.handleOutcome)
	}
}

// Recent lists the newest journal entries.
func (j *JournalService) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if j.journal == nil {
		return []domain.JournalEntry{}, nil
	}
	return j.journal.ListRecent(ctx, limit)
}

func (j *JournalService) handleOutcome(ctx context.Context, event events.Event) error {
	j.logger.Debug("relay outcome",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("outcome", event.Outcome),
		zap.String("stage", event.Stage),
		zap.String("ticket_number", event.TicketNumber))

	if j.journal == nil {
		return nil
	}
	entry := &domain.JournalEntry{
		ID:           event.ID,
		Direction:    event.Direction,
		Outcome:      event.Outcome,
		Stage:        event.Stage,
		ChatID:       event.ChatID,
		MessageID:    event.MessageID,
		TicketNumber: event.TicketNumber,
		Detail:       event.Detail,
	}
	// Journal writes survive a cancelled request context.
	return j.journal.Create(context.WithoutCancel(ctx), entry)
}
