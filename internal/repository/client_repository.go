package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// ClientRepository encapsulates client company persistence.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	// AttachThread records a newly created forum thread for the client.
	// It only succeeds while the client has no thread yet, so concurrent
	// creators race on the database row rather than duplicating threads.
	AttachThread(ctx context.Context, clientID, threadID, channelID int64) (bool, error)
	ByPredefinedUsername(ctx context.Context, username string) (*domain.Client, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository instantiates repository.
func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	const query = `
        INSERT INTO clients (name, thread_id, channel_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, client.Name, client.ThreadID, client.ChannelID).
		Scan(&client.ID, &client.CreatedAt)
}

func (r *clientRepository) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	const query = `SELECT id, name, thread_id, channel_id, created_at FROM clients WHERE id=$1`
	var client domain.Client
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&client.ID, &client.Name, &client.ThreadID, &client.ChannelID, &client.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) AttachThread(ctx context.Context, clientID, threadID, channelID int64) (bool, error) {
	const query = `
        UPDATE clients SET thread_id=$2, channel_id=$3
        WHERE id=$1 AND thread_id IS NULL`
	cmd, err := r.pool.Exec(ctx, query, clientID, threadID, channelID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *clientRepository) ByPredefinedUsername(ctx context.Context, username string) (*domain.Client, error) {
	const query = `
        SELECT c.id, c.name, c.thread_id, c.channel_id, c.created_at
        FROM clients c
        JOIN predefined_users p ON p.client_id = c.id
        WHERE LOWER(p.username) = $1`
	var client domain.Client
	err := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimPrefix(username, "@"))).
		Scan(&client.ID, &client.Name, &client.ThreadID, &client.ChannelID, &client.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &client, nil
}
