package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-bot/internal/domain"
)

// FeedbackRepository stores at most one feedback record per ticket.
type FeedbackRepository interface {
	// Create inserts the record; a second insert for the same ticket is a
	// silent no-op and reports created=false.
	Create(ctx context.Context, feedback *domain.Feedback) (bool, error)
	GetByTicket(ctx context.Context, ticketID int64) (*domain.Feedback, error)
	UpdateRatings(ctx context.Context, ticketID int64, speed, quality, politeness *int) error
	UpdateComment(ctx context.Context, ticketID int64, comment string) error
}

type feedbackRepository struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepository instantiates repository.
func NewFeedbackRepository(pool *pgxpool.Pool) FeedbackRepository {
	return &feedbackRepository{pool: pool}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *domain.Feedback) (bool, error) {
	const query = `
        INSERT INTO feedback (ticket_id, csat, speed_rating, quality_rating, politeness_rating, comment)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (ticket_id) DO NOTHING
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		feedback.TicketID,
		feedback.CSAT,
		feedback.SpeedRating,
		feedback.QualityRating,
		feedback.PolitenessRating,
		feedback.Comment,
	).Scan(&feedback.ID, &feedback.CreatedAt)
	if err != nil {
		// DO NOTHING yields no row when the conflict fires.
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *feedbackRepository) GetByTicket(ctx context.Context, ticketID int64) (*domain.Feedback, error) {
	const query = `
        SELECT id, ticket_id, csat, speed_rating, quality_rating, politeness_rating, comment, created_at
        FROM feedback WHERE ticket_id=$1`
	var feedback domain.Feedback
	err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&feedback.ID,
		&feedback.TicketID,
		&feedback.CSAT,
		&feedback.SpeedRating,
		&feedback.QualityRating,
		&feedback.PolitenessRating,
		&feedback.Comment,
		&feedback.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &feedback, nil
}

func (r *feedbackRepository) UpdateRatings(ctx context.Context, ticketID int64, speed, quality, politeness *int) error {
	const query = `
        UPDATE feedback
        SET speed_rating=COALESCE($2, speed_rating),
            quality_rating=COALESCE($3, quality_rating),
            politeness_rating=COALESCE($4, politeness_rating)
        WHERE ticket_id=$1`
	_, err := r.pool.Exec(ctx, query, ticketID, speed, quality, politeness)
	return err
}

func (r *feedbackRepository) UpdateComment(ctx context.Context, ticketID int64, comment string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE feedback SET comment=$2 WHERE ticket_id=$1`, ticketID, comment)
	return err
}
