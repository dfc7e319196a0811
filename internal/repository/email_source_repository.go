package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// EmailOutcome captures the one-time processing result written back to an
// EmailSource record.
type EmailOutcome struct {
	ProcessedAt      time.Time
	IsSAPRelated     *bool
	DetectedCategory *string
	LLMAnalysis      map[string]any
	TicketCreatedID  *int64
	ErrorMessage     *string
}

// EmailStats aggregates processing figures for the admin dashboard.
type EmailStats struct {
	Total          int
	Processed      int
	SAPRelated     int
	TicketsCreated int
	Errored        int
}

// EmailSourceRepository persists inbound email records.
type EmailSourceRepository interface {
	// Create inserts a new record; racing on the unique message_id surfaces
	// as a 23505 error the caller must treat as "already exists".
	Create(ctx context.Context, email *domain.EmailSource) error
	GetByID(ctx context.Context, id int64) (*domain.EmailSource, error)
	GetByMessageID(ctx context.Context, messageID string) (*domain.EmailSource, error)
	MarkProcessed(ctx context.Context, id int64, outcome EmailOutcome) error
	ClearOutcome(ctx context.Context, id int64) error
	Stats(ctx context.Context) (EmailStats, error)
	ListRecent(ctx context.Context, limit int) ([]domain.EmailSource, error)
	ListUnprocessed(ctx context.Context, limit int) ([]domain.EmailSource, error)
	ListByCategory(ctx context.Context, category string, limit, offset int) ([]domain.EmailSource, error)
}

type emailSourceRepository struct {
	pool *pgxpool.Pool
}

// NewEmailSourceRepository builds repository.
func NewEmailSourceRepository(pool *pgxpool.Pool) EmailSourceRepository {
	return &emailSourceRepository{pool: pool}
}

const emailColumns = `id, message_id, from_address, to_address, subject, body_text, body_html,
    received_at, processed_at, is_sap_related, detected_category, llm_analysis,
    ticket_created_id, error_message, raw_headers, created_at`

func (r *emailSourceRepository) Create(ctx context.Context, email *domain.EmailSource) error {
	const query = `
        INSERT INTO email_sources (message_id, from_address, to_address, subject, body_text, body_html, received_at, raw_headers)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		email.MessageID,
		email.FromAddress,
		email.ToAddress,
		email.Subject,
		email.BodyText,
		email.BodyHTML,
		email.ReceivedAt,
		email.RawHeaders,
	).Scan(&email.ID, &email.CreatedAt)
}

func (r *emailSourceRepository) GetByID(ctx context.Context, id int64) (*domain.EmailSource, error) {
	const query = `SELECT ` + emailColumns + ` FROM email_sources WHERE id=$1`
	var email domain.EmailSource
	if err := scanEmailSource(r.pool.QueryRow(ctx, query, id), &email); err != nil {
		return nil, err
	}
	return &email, nil
}

func (r *emailSourceRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.EmailSource, error) {
	const query = `SELECT ` + emailColumns + ` FROM email_sources WHERE message_id=$1`
	var email domain.EmailSource
	if err := scanEmailSource(r.pool.QueryRow(ctx, query, messageID), &email); err != nil {
		return nil, err
	}
	return &email, nil
}

func (r *emailSourceRepository) MarkProcessed(ctx context.Context, id int64, outcome EmailOutcome) error {
	const query = `
        UPDATE email_sources SET processed_at=$1, is_sap_related=$2, detected_category=$3,
            llm_analysis=$4, ticket_created_id=$5, error_message=$6
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		outcome.ProcessedAt,
		outcome.IsSAPRelated,
		outcome.DetectedCategory,
		outcome.LLMAnalysis,
		outcome.TicketCreatedID,
		outcome.ErrorMessage,
		id,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ClearOutcome resets a record so the pipeline will pick it up again on an
// explicit admin reprocess. The created ticket reference, if any, is kept.
func (r *emailSourceRepository) ClearOutcome(ctx context.Context, id int64) error {
	const query = `
        UPDATE email_sources SET processed_at=NULL, is_sap_related=NULL, detected_category=NULL,
            llm_analysis=NULL, error_message=NULL
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *emailSourceRepository) Stats(ctx context.Context) (EmailStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(processed_at),
               COUNT(*) FILTER (WHERE is_sap_related),
               COUNT(ticket_created_id),
               COUNT(error_message)
        FROM email_sources`
	var stats EmailStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Total,
		&stats.Processed,
		&stats.SAPRelated,
		&stats.TicketsCreated,
		&stats.Errored,
	)
	return stats, err
}

func (r *emailSourceRepository) ListRecent(ctx context.Context, limit int) ([]domain.EmailSource, error) {
	const query = `SELECT ` + emailColumns + ` FROM email_sources ORDER BY received_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, normalizeLimit(limit, 10))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmailSources(rows)
}

func (r *emailSourceRepository) ListUnprocessed(ctx context.Context, limit int) ([]domain.EmailSource, error) {
	const query = `
        SELECT ` + emailColumns + ` FROM email_sources
        WHERE processed_at IS NULL ORDER BY received_at ASC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, normalizeLimit(limit, 50))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmailSources(rows)
}

func (r *emailSourceRepository) ListByCategory(ctx context.Context, category string, limit, offset int) ([]domain.EmailSource, error) {
	const query = `
        SELECT ` + emailColumns + ` FROM email_sources
        WHERE detected_category=$1 ORDER BY received_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, category, normalizeLimit(limit, 50), normalizeOffset(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmailSources(rows)
}

func scanEmailSource(row pgx.Row, email *domain.EmailSource) error {
	return row.Scan(
		&email.ID,
		&email.MessageID,
		&email.FromAddress,
		&email.ToAddress,
		&email.Subject,
		&email.BodyText,
		&email.BodyHTML,
		&email.ReceivedAt,
		&email.ProcessedAt,
		&email.IsSAPRelated,
		&email.DetectedCategory,
		&email.LLMAnalysis,
		&email.TicketCreatedID,
		&email.ErrorMessage,
		&email.RawHeaders,
		&email.CreatedAt,
	)
}

func scanEmailSources(rows pgx.Rows) ([]domain.EmailSource, error) {
	var result []domain.EmailSource
	for rows.Next() {
		var email domain.EmailSource
		if err := scanEmailSource(rows, &email); err != nil {
			return nil, err
		}
		result = append(result, email)
	}
	return result, rows.Err()
}
