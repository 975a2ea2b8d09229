package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// ErrAlreadyClaimed is returned by Claim when the ticket exists but is held
// by another operator or past the claimable state.
var ErrAlreadyClaimed = errors.New("ticket already claimed")

// TicketRepository encapsulates ticket persistence.
//
// Create and Claim are the two operations requiring concurrency control:
// Create serializes number allocation through the counter row's lock, and
// Claim is a conditional update that admits exactly one winner.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket, firstMessage *domain.Message) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Claim(ctx context.Context, ticketID, operatorID int64) (*domain.Ticket, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number int) (*domain.Ticket, error)
	ByThread(ctx context.Context, threadID, channelID int64) (*domain.Ticket, error)
	ActiveByUser(ctx context.Context, userID int64) (*domain.Ticket, error)
	RecentClosedByUser(ctx context.Context, userID int64, since time.Time) (*domain.Ticket, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Ticket, error)
	ListByOperator(ctx context.Context, operatorID int64, onlyActive bool, limit int) ([]domain.Ticket, error)
	ListUnassigned(ctx context.Context, limit int) ([]domain.Ticket, error)
}

const ticketColumns = `id, number, project_id, client_user_id, category, description, priority, status,
               channel_id, thread_id, assigned_operator_id, created_at, updated_at, first_response_at, closed_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, firstMessage *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The counter row's lock serializes allocation: numbers come out
	// contiguous and unique regardless of concurrent creates.
	if err := tx.QueryRow(ctx,
		`UPDATE ticket_counter SET value = value + 1 RETURNING value`,
	).Scan(&ticket.Number); err != nil {
		return err
	}

	const insertTicket = `
        INSERT INTO tickets (number, project_id, client_user_id, category, description, priority, status, channel_id, thread_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, insertTicket,
		ticket.Number,
		ticket.ProjectID,
		ticket.ClientUserID,
		ticket.Category,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.ChannelID,
		ticket.ThreadID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	if firstMessage != nil {
		firstMessage.TicketID = ticket.ID
		const insertMessage = `
            INSERT INTO messages (ticket_id, direction, gateway_message_id, type, content, file_id, author_user_id)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            RETURNING id, created_at`
		if err := tx.QueryRow(ctx, insertMessage,
			firstMessage.TicketID,
			firstMessage.Direction,
			firstMessage.GatewayMessageID,
			firstMessage.Type,
			firstMessage.Content,
			firstMessage.FileID,
			firstMessage.AuthorUserID,
		).Scan(&firstMessage.ID, &firstMessage.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET category=$1, description=$2, priority=$3, status=$4, thread_id=$5,
            assigned_operator_id=$6, first_response_at=$7, closed_at=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Category,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.ThreadID,
		ticket.AssignedOperatorID,
		ticket.FirstResponseAt,
		ticket.ClosedAt,
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

func (r *ticketRepository) Claim(ctx context.Context, ticketID, operatorID int64) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets
        SET status='in_progress', assigned_operator_id=$2,
            first_response_at=COALESCE(first_response_at, NOW()), updated_at=NOW()
        WHERE id=$1
          AND (status='new' OR (status='in_progress' AND assigned_operator_id=$2))
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, ticketID, operatorID))
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	// Condition failed: distinguish a missing ticket from a lost race.
	if _, err := r.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return nil, ErrAlreadyClaimed
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number int) (*domain.Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE number=$1`, number))
}

func (r *ticketRepository) ByThread(ctx context.Context, threadID, channelID int64) (*domain.Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets
         WHERE thread_id=$1 AND channel_id=$2
         ORDER BY created_at DESC LIMIT 1`, threadID, channelID))
}

func (r *ticketRepository) ActiveByUser(ctx context.Context, userID int64) (*domain.Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets
         WHERE client_user_id=$1 AND status IN ('new','in_progress','on_hold')
         ORDER BY created_at DESC LIMIT 1`, userID))
}

func (r *ticketRepository) RecentClosedByUser(ctx context.Context, userID int64, since time.Time) (*domain.Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets
         WHERE client_user_id=$1 AND status='completed' AND closed_at >= $2
         ORDER BY closed_at DESC LIMIT 1`, userID, since))
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
         WHERE client_user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByOperator(ctx context.Context, operatorID int64, onlyActive bool, limit int) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE assigned_operator_id=$1`
	if onlyActive {
		query += ` AND status IN ('in_progress','on_hold')`
	}
	query += ` ORDER BY updated_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, operatorID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListUnassigned(ctx context.Context, limit int) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
         WHERE assigned_operator_id IS NULL AND status='new'
         ORDER BY created_at ASC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.ProjectID,
		&ticket.ClientUserID,
		&ticket.Category,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.ChannelID,
		&ticket.ThreadID,
		&ticket.AssignedOperatorID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
