package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	Category   *domain.TicketCategory
	CreatedBy  *int64
	AssignedTo *int64
	SearchTerm *string
	OrderBy    string
	OrderDesc  bool
	Limit      int
	Offset     int
}

// SLAStats aggregates resolution figures for analytics.
type SLAStats struct {
	ResolvedTotal int
	WithinSLA     int
}

// DailyCount is one point of the ticket-creation trend.
type DailyCount struct {
	Date  time.Time
	Count int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// CreateWithLogs inserts the ticket and its initial log entries in one
	// transaction; the ticket number is drawn from the sequence inside it.
	CreateWithLogs(ctx context.Context, ticket *domain.Ticket, logs []domain.TicketLog) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	Recent(ctx context.Context, limit int) ([]domain.Ticket, error)

	StatusCounts(ctx context.Context) (map[string]int, error)
	PriorityCounts(ctx context.Context) (map[string]int, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
	DailyCounts(ctx context.Context, days int) ([]DailyCount, error)
	AverageResolutionMinutes(ctx context.Context) (float64, error)
	ResolvedSince(ctx context.Context, since time.Time) (int, error)
	ResolvedSLAStats(ctx context.Context) (SLAStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, title, description, status, priority, category,
    created_by, assigned_to, source_email_id, source_email_from, source_email_subject,
    llm_confidence, llm_raw_response, sla_due_date, resolution_minutes,
    created_at, updated_at, resolved_at`

func (r *ticketRepository) CreateWithLogs(ctx context.Context, ticket *domain.Ticket, logs []domain.TicketLog) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.QueryRow(ctx,
		`SELECT 'T-' || LPAD(nextval('ticket_number_seq')::text, 3, '0')`,
	).Scan(&ticket.Number); err != nil {
		return err
	}

	const insert = `
        INSERT INTO tickets (number, title, description, status, priority, category,
            created_by, assigned_to, source_email_id, source_email_from, source_email_subject,
            llm_confidence, llm_raw_response, sla_due_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, insert,
		ticket.Number,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.SourceEmailID,
		ticket.SourceEmailFrom,
		ticket.SourceEmailSubject,
		ticket.LLMConfidence,
		ticket.LLMRawResponse,
		ticket.SLADueDate,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	const insertLog = `
        INSERT INTO ticket_logs (ticket_id, user_id, log_type, action, old_value, new_value, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for i := range logs {
		logs[i].TicketID = ticket.ID
		if _, err := tx.Exec(ctx, insertLog,
			logs[i].TicketID,
			logs[i].UserID,
			logs[i].LogType,
			logs[i].Action,
			logs[i].OldValue,
			logs[i].NewValue,
			logs[i].Metadata,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, category=$5,
            assigned_to=$6, sla_due_date=$7, resolution_minutes=$8, resolved_at=$9, updated_at=NOW()
        WHERE id=$10`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.AssignedTo,
		ticket.SLADueDate,
		ticket.ResolutionMinutes,
		ticket.ResolvedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE number=$1`
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

var ticketOrderColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"priority":   "priority",
	"status":     "status",
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + toLowerTrim(*filter.SearchTerm) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(number) LIKE %s)", placeholder, placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM tickets WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderCol, ok := ticketOrderColumns[filter.OrderBy]
	if !ok {
		orderCol = "created_at"
	}
	direction := "ASC"
	if filter.OrderDesc {
		direction = "DESC"
	}

	limit := normalizeLimit(filter.Limit, 20)
	offset := normalizeOffset(filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		ticketColumns, where, orderCol, direction, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) Recent(ctx context.Context, limit int) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets ORDER BY created_at DESC LIMIT %d`,
		ticketColumns, normalizeLimit(limit, 10))
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) StatusCounts(ctx context.Context) (map[string]int, error) {
	return r.groupCounts(ctx, "status")
}

func (r *ticketRepository) PriorityCounts(ctx context.Context) (map[string]int, error) {
	return r.groupCounts(ctx, "priority")
}

func (r *ticketRepository) CategoryCounts(ctx context.Context) (map[string]int, error) {
	return r.groupCounts(ctx, "category")
}

func (r *ticketRepository) groupCounts(ctx context.Context, column string) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM tickets GROUP BY %s`, column, column)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) DailyCounts(ctx context.Context, days int) ([]DailyCount, error) {
	const query = `
        SELECT DATE_TRUNC('day', created_at) AS day, COUNT(*)
        FROM tickets
        WHERE created_at >= NOW() - ($1 || ' days')::interval
        GROUP BY day ORDER BY day ASC`
	rows, err := r.pool.Query(ctx, query, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DailyCount
	for rows.Next() {
		var point DailyCount
		if err := rows.Scan(&point.Date, &point.Count); err != nil {
			return nil, err
		}
		result = append(result, point)
	}
	return result, rows.Err()
}

func (r *ticketRepository) AverageResolutionMinutes(ctx context.Context) (float64, error) {
	var avg *float64
	err := r.pool.QueryRow(ctx,
		`SELECT AVG(resolution_minutes) FROM tickets WHERE resolution_minutes IS NOT NULL`,
	).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *ticketRepository) ResolvedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE resolved_at >= $1`, since,
	).Scan(&count)
	return count, err
}

// ResolvedSLAStats counts resolved tickets and those resolved within their SLA
// due date (24h after creation when none was set).
func (r *ticketRepository) ResolvedSLAStats(ctx context.Context) (SLAStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE resolved_at <= COALESCE(sla_due_date, created_at + interval '24 hours'))
        FROM tickets WHERE resolved_at IS NOT NULL`
	var stats SLAStats
	err := r.pool.QueryRow(ctx, query).Scan(&stats.ResolvedTotal, &stats.WithinSLA)
	return stats, err
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.SourceEmailID,
		&ticket.SourceEmailFrom,
		&ticket.SourceEmailSubject,
		&ticket.LLMConfidence,
		&ticket.LLMRawResponse,
		&ticket.SLADueDate,
		&ticket.ResolutionMinutes,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
