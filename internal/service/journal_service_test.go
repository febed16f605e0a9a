package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/desk-bridge/internal/domain"
	"github.com/spec-kit/desk-bridge/internal/events"
)

type memoryJournal struct {
	entries []domain.JournalEntry
	err     error
}

func (m *memoryJournal) Create(_ context.Context, entry *domain.JournalEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryJournal) ListRecent(_ context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit > len(m.entries) {
		limit = len(m.entries)
	}
	return m.entries[:limit], nil
}

func TestJournalRecordsEveryOutcome(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	journal := &memoryJournal{}
	NewJournalService(dispatcher, journal, nil).RegisterHandlers()

	for _, eventType := range events.AllEventTypes {
		dispatcher.Publish(context.Background(), events.Event{
			Type:         eventType,
			Direction:    domain.DirectionChatToDesk,
			Outcome:      "handled",
			TicketNumber: "101",
		})
	}

	require.Len(t, journal.entries, len(events.AllEventTypes))
	assert.Equal(t, "101", journal.entries[0].TicketNumber)
	assert.NotEmpty(t, journal.entries[0].ID)
}

func TestJournalWriteFailureDoesNotPropagate(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	NewJournalService(dispatcher, &memoryJournal{err: errors.New("db down")}, nil).RegisterHandlers()

	assert.NotPanics(t, func() {
		dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated})
	})
}

func TestJournalRecentWithoutStore(t *testing.T) {
	entries, err := NewJournalService(nil, nil, nil).Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
