package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// BindingRepository stores user-to-project bindings. A user may hold several
// historical bindings; the one touched most recently is the current one.
type BindingRepository interface {
	Current(ctx context.Context, userID int64) (*domain.UserBinding, error)
	Upsert(ctx context.Context, binding *domain.UserBinding) error
	Touch(ctx context.Context, userID, projectID int64) error
}

type bindingRepository struct {
	pool *pgxpool.Pool
}

// NewBindingRepository instantiates repository.
func NewBindingRepository(pool *pgxpool.Pool) BindingRepository {
	return &bindingRepository{pool: pool}
}

func (r *bindingRepository) Current(ctx context.Context, userID int64) (*domain.UserBinding, error) {
	const query = `
        SELECT id, user_id, username, display_name, project_id, created_at, updated_at
        FROM user_bindings
        WHERE user_id=$1
        ORDER BY updated_at DESC LIMIT 1`
	var binding domain.UserBinding
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&binding.ID,
		&binding.UserID,
		&binding.Username,
		&binding.DisplayName,
		&binding.ProjectID,
		&binding.CreatedAt,
		&binding.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

func (r *bindingRepository) Upsert(ctx context.Context, binding *domain.UserBinding) error {
	const query = `
        INSERT INTO user_bindings (user_id, username, display_name, project_id)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id, project_id) DO UPDATE
            SET username=EXCLUDED.username, display_name=EXCLUDED.display_name, updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		binding.UserID, binding.Username, binding.DisplayName, binding.ProjectID,
	).Scan(&binding.ID, &binding.CreatedAt, &binding.UpdatedAt)
}

func (r *bindingRepository) Touch(ctx context.Context, userID, projectID int64) error {
	const query = `
        UPDATE user_bindings SET updated_at=NOW()
        WHERE user_id=$1 AND project_id=$2`
	_, err := r.pool.Exec(ctx, query, userID, projectID)
	return err
}
