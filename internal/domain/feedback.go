package domain

import "time"

// CSAT is the coarse satisfaction signal collected after a ticket closes.
type CSAT string

const (
	CSATPositive CSAT = "positive"
	CSATNegative CSAT = "negative"
)

// Feedback stores at most one CSAT record per ticket. The detailed 1-5
// ratings and the comment are filled in afterward by the rating sub-flow,
// mutating the row in place.
type Feedback struct {
	ID               int64
	TicketID         int64
	CSAT             CSAT
	SpeedRating      *int
	QualityRating    *int
	PolitenessRating *int
	Comment          string
	CreatedAt        time.Time
}
