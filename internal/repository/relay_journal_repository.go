package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/desk-bridge/internal/domain"
)

// RelayJournalRepository persists the outcome of every webhook delivery.
type RelayJournalRepository interface {
	Create(ctx context.Context, entry *domain.JournalEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

type relayJournalRepository struct {
	pool *pgxpool.Pool
}

// NewRelayJournalRepository instantiates repository.
func NewRelayJournalRepository(pool *pgxpool.Pool) RelayJournalRepository {
	return &relayJournalRepository{pool: pool}
}

func (r *relayJournalRepository) Create(ctx context.Context, entry *domain.JournalEntry) error {
	const query = `
        INSERT INTO relay_journal (id, direction, outcome, stage, chat_id, message_id, ticket_number, detail)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.Direction,
		entry.Outcome,
		entry.Stage,
		nullableInt64(entry.ChatID),
		nullableInt(entry.MessageID),
		nullableString(entry.TicketNumber),
		nullableString(entry.Detail),
	).Scan(&entry.CreatedAt)
}

func (r *relayJournalRepository) ListRecent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `
        SELECT id, direction, outcome, stage, COALESCE(chat_id, 0), COALESCE(message_id, 0),
               COALESCE(ticket_number, ''), COALESCE(detail, ''), created_at
        FROM relay_journal ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.JournalEntry, error) {
		var entry domain.JournalEntry
		err := row.Scan(
			&entry.ID,
			&entry.Direction,
			&entry.Outcome,
			&entry.Stage,
			&entry.ChatID,
			&entry.MessageID,
			&entry.TicketNumber,
			&entry.Detail,
			&entry.CreatedAt,
		)
		return entry, err
	})
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func nullableInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nullableInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
