package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// AuditLogRepository stores admin action records.
type AuditLogRepository interface {
	Create(ctx context.Context, log *domain.AdminAuditLog) error
	List(ctx context.Context, limit, offset int) ([]domain.AdminAuditLog, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Create(ctx context.Context, log *domain.AdminAuditLog) error {
	const query = `
        INSERT INTO admin_audit_logs (admin_id, action, target_user_id, details, ip_address, user_agent)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		log.AdminID,
		log.Action,
		log.TargetUserID,
		log.Details,
		log.IPAddress,
		log.UserAgent,
	).Scan(&log.ID, &log.CreatedAt)
}

func (r *auditLogRepository) List(ctx context.Context, limit, offset int) ([]domain.AdminAuditLog, error) {
	const query = `
        SELECT id, admin_id, action, target_user_id, details, ip_address, user_agent, created_at
        FROM admin_audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, normalizeLimit(limit, 50), normalizeOffset(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AdminAuditLog
	for rows.Next() {
		var log domain.AdminAuditLog
		if err := rows.Scan(
			&log.ID,
			&log.AdminID,
			&log.Action,
			&log.TargetUserID,
			&log.Details,
			&log.IPAddress,
			&log.UserAgent,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, log)
	}
	return result, rows.Err()
}
