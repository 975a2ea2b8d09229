package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// ProjectRepository encapsulates project persistence.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id int64) (*domain.Project, error)
	// GetByInviteCode matches active projects only, case-insensitively.
	GetByInviteCode(ctx context.Context, code string) (*domain.Project, error)
	FirstActiveByClient(ctx context.Context, clientID int64) (*domain.Project, error)
	Count(ctx context.Context) (int64, error)
}

const projectColumns = `id, client_id, name, invite_code, is_active, created_at`

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository instantiates repository.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	const query = `
        INSERT INTO projects (client_id, name, invite_code, is_active)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		project.ClientID, project.Name, project.InviteCode, project.IsActive,
	).Scan(&project.ID, &project.CreatedAt)
}

func (r *projectRepository) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	return r.scanOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
}

func (r *projectRepository) GetByInviteCode(ctx context.Context, code string) (*domain.Project, error) {
	return r.scanOne(ctx,
		`SELECT `+projectColumns+` FROM projects
         WHERE LOWER(invite_code)=$1 AND is_active`, strings.ToLower(strings.TrimSpace(code)))
}

func (r *projectRepository) FirstActiveByClient(ctx context.Context, clientID int64) (*domain.Project, error) {
	return r.scanOne(ctx,
		`SELECT `+projectColumns+` FROM projects
         WHERE client_id=$1 AND is_active
         ORDER BY created_at ASC LIMIT 1`, clientID)
}

func (r *projectRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count)
	return count, err
}

func (r *projectRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Project, error) {
	var project domain.Project
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&project.ID,
		&project.ClientID,
		&project.Name,
		&project.InviteCode,
		&project.IsActive,
		&project.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &project, nil
}
