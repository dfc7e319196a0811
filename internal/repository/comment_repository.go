package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// CommentRepository persists ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.TicketComment) error
	GetByID(ctx context.Context, id int64) (*domain.TicketComment, error)
	UpdateContent(ctx context.Context, id int64, content string, editedAt time.Time) (*domain.TicketComment, error)
	Delete(ctx context.Context, id int64) error
	ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.TicketComment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

const commentColumns = `id, ticket_id, author_id, content, is_internal, is_edited, edited_at, created_at`

func (r *commentRepository) Create(ctx context.Context, comment *domain.TicketComment) error {
	const query = `
        INSERT INTO ticket_comments (ticket_id, author_id, content, is_internal)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.Content,
		comment.IsInternal,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (*domain.TicketComment, error) {
	const query = `SELECT ` + commentColumns + ` FROM ticket_comments WHERE id=$1`
	var comment domain.TicketComment
	if err := scanComment(r.pool.QueryRow(ctx, query, id), &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id int64, content string, editedAt time.Time) (*domain.TicketComment, error) {
	const query = `
        UPDATE ticket_comments SET content=$1, is_edited=TRUE, edited_at=$2
        WHERE id=$3 RETURNING ` + commentColumns
	var comment domain.TicketComment
	if err := scanComment(r.pool.QueryRow(ctx, query, content, editedAt, id), &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM ticket_comments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.TicketComment, error) {
	query := `SELECT ` + commentColumns + ` FROM ticket_comments WHERE ticket_id=$1`
	if !includeInternal {
		query += ` AND NOT is_internal`
	}
	query += ` ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketComment
	for rows.Next() {
		var comment domain.TicketComment
		if err := scanComment(rows, &comment); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

func scanComment(row pgx.Row, comment *domain.TicketComment) error {
	return row.Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.AuthorID,
		&comment.Content,
		&comment.IsInternal,
		&comment.IsEdited,
		&comment.EditedAt,
		&comment.CreatedAt,
	)
}
