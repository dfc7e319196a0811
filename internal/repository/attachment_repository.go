package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// AttachmentRepository stores attachment metadata records.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id int64) (*domain.Attachment, error)
	Delete(ctx context.Context, id int64) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository builds repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

const attachmentColumns = `id, ticket_id, file_name, original_file_name, file_type, size_bytes, storage_key, storage_url, uploaded_by, created_at`

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (ticket_id, file_name, original_file_name, file_type, size_bytes, storage_key, storage_url, uploaded_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.FileName,
		attachment.OriginalFileName,
		attachment.FileType,
		attachment.SizeBytes,
		attachment.StorageKey,
		attachment.StorageURL,
		attachment.UploadedBy,
	).Scan(&attachment.ID, &attachment.CreatedAt)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id int64) (*domain.Attachment, error) {
	const query = `SELECT ` + attachmentColumns + ` FROM attachments WHERE id=$1`
	var attachment domain.Attachment
	if err := scanAttachment(r.pool.QueryRow(ctx, query, id), &attachment); err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM attachments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	const query = `SELECT ` + attachmentColumns + ` FROM attachments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := scanAttachment(rows, &attachment); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}

func scanAttachment(row pgx.Row, attachment *domain.Attachment) error {
	return row.Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.FileName,
		&attachment.OriginalFileName,
		&attachment.FileType,
		&attachment.SizeBytes,
		&attachment.StorageKey,
		&attachment.StorageURL,
		&attachment.UploadedBy,
		&attachment.CreatedAt,
	)
}
