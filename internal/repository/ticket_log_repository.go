package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// TicketLogRepository stores append-only audit entries.
type TicketLogRepository interface {
	Create(ctx context.Context, log *domain.TicketLog) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketLog, error)
}

type ticketLogRepository struct {
	pool *pgxpool.Pool
}

// NewTicketLogRepository builds repository.
func NewTicketLogRepository(pool *pgxpool.Pool) TicketLogRepository {
	return &ticketLogRepository{pool: pool}
}

func (r *ticketLogRepository) Create(ctx context.Context, log *domain.TicketLog) error {
	const query = `
        INSERT INTO ticket_logs (ticket_id, user_id, log_type, action, old_value, new_value, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		log.TicketID,
		log.UserID,
		log.LogType,
		log.Action,
		log.OldValue,
		log.NewValue,
		log.Metadata,
	).Scan(&log.ID, &log.CreatedAt)
}

func (r *ticketLogRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketLog, error) {
	const query = `
        SELECT id, ticket_id, user_id, log_type, action, old_value, new_value, metadata, created_at
        FROM ticket_logs WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTicketLogs(rows)
}

func scanTicketLogs(rows pgx.Rows) ([]domain.TicketLog, error) {
	var result []domain.TicketLog
	for rows.Next() {
		var log domain.TicketLog
		if err := rows.Scan(
			&log.ID,
			&log.TicketID,
			&log.UserID,
			&log.LogType,
			&log.Action,
			&log.OldValue,
			&log.NewValue,
			&log.Metadata,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, log)
	}
	return result, rows.Err()
}
