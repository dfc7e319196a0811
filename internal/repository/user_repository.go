package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// AzureProfile carries identity fields resolved from Microsoft Graph.
type AzureProfile struct {
	AzureID    string
	Email      string
	Name       string
	Department *string
}

// UserRepository defines persistence access for users.
type UserRepository interface {
	UpsertFromAzure(ctx context.Context, profile AzureProfile) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByAzureID(ctx context.Context, azureID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListActive(ctx context.Context, limit, offset int) ([]domain.User, error)
	Search(ctx context.Context, query string, limit, offset int) ([]domain.User, error)
	ListAdmins(ctx context.Context) ([]domain.User, error)
	Count(ctx context.Context) (int, error)
	AdminCount(ctx context.Context) (int, error)
	SetAdminStatus(ctx context.Context, id int64, isAdmin bool) (*domain.User, error)
	SetActiveStatus(ctx context.Context, id int64, isActive bool) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, name *string, department *string, avatarURL *string) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	EnsureSystemUser(ctx context.Context) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, azure_id, email, name, department, avatar_url, is_active, is_admin, last_login, created_at, updated_at`

func (r *userRepository) UpsertFromAzure(ctx context.Context, profile AzureProfile) (*domain.User, error) {
	// The very first human account ever created becomes admin. The pipeline's
	// system actor is inserted at boot and must not absorb that grant.
	const query = `
        INSERT INTO users (azure_id, email, name, department, is_admin)
        VALUES ($1, $2, $3, $4, (SELECT COUNT(*) FROM users WHERE azure_id <> 'system') = 0)
        ON CONFLICT (azure_id) DO UPDATE
            SET email = EXCLUDED.email,
                name = EXCLUDED.name,
                department = COALESCE(EXCLUDED.department, users.department),
                updated_at = NOW()
        RETURNING ` + userColumns
	return r.scanOne(r.pool.QueryRow(ctx, query, profile.AzureID, profile.Email, profile.Name, profile.Department))
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByAzureID(ctx context.Context, azureID string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE azure_id=$1`
	return r.scanOne(r.pool.QueryRow(ctx, query, azureID))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) ListActive(ctx context.Context, limit, offset int) ([]domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE is_active ORDER BY name ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, normalizeLimit(limit, 100), normalizeOffset(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) Search(ctx context.Context, query string, limit, offset int) ([]domain.User, error) {
	const sql = `
        SELECT ` + userColumns + ` FROM users
        WHERE is_active AND (LOWER(name) LIKE $1 OR LOWER(email) LIKE $1)
        ORDER BY name ASC LIMIT $2 OFFSET $3`
	pattern := "%" + toLowerTrim(query) + "%"
	rows, err := r.pool.Query(ctx, sql, pattern, normalizeLimit(limit, 20), normalizeOffset(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE is_admin ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_active`).Scan(&count)
	return count, err
}

func (r *userRepository) AdminCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_admin AND is_active`).Scan(&count)
	return count, err
}

func (r *userRepository) SetAdminStatus(ctx context.Context, id int64, isAdmin bool) (*domain.User, error) {
	const query = `UPDATE users SET is_admin=$1, updated_at=NOW() WHERE id=$2 RETURNING ` + userColumns
	return r.scanOne(r.pool.QueryRow(ctx, query, isAdmin, id))
}

func (r *userRepository) SetActiveStatus(ctx context.Context, id int64, isActive bool) (*domain.User, error) {
	const query = `UPDATE users SET is_active=$1, updated_at=NOW() WHERE id=$2 RETURNING ` + userColumns
	return r.scanOne(r.pool.QueryRow(ctx, query, isActive, id))
}

func (r *userRepository) UpdateProfile(ctx context.Context, id int64, name *string, department *string, avatarURL *string) (*domain.User, error) {
	const query = `
        UPDATE users SET
            name = COALESCE($1, name),
            department = COALESCE($2, department),
            avatar_url = COALESCE($3, avatar_url),
            updated_at = NOW()
        WHERE id=$4 RETURNING ` + userColumns
	return r.scanOne(r.pool.QueryRow(ctx, query, name, department, avatarURL, id))
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE users SET last_login=$1 WHERE id=$2`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// EnsureSystemUser returns the actor record used by the email pipeline,
// creating it on first call. The system user never counts as admin.
func (r *userRepository) EnsureSystemUser(ctx context.Context) (*domain.User, error) {
	const query = `
        INSERT INTO users (azure_id, email, name, is_admin)
        VALUES ('system', 'system@sapdesk.internal', 'Email Pipeline', FALSE)
        ON CONFLICT (azure_id) DO UPDATE SET updated_at = NOW()
        RETURNING ` + userColumns
	return r.scanOne(r.pool.QueryRow(ctx, query))
}

func (r *userRepository) scanOne(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.AzureID,
		&user.Email,
		&user.Name,
		&user.Department,
		&user.AvatarURL,
		&user.IsActive,
		&user.IsAdmin,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.AzureID,
			&user.Email,
			&user.Name,
			&user.Department,
			&user.AvatarURL,
			&user.IsActive,
			&user.IsAdmin,
			&user.LastLogin,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}
