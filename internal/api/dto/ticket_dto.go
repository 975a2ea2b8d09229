package dto

import (
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

// TicketResponse is the API shape of a ticket.
type TicketResponse struct {
	ID          int64      `json:"id"`
	Number      int        `json:"number"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	AssignedTo  *int64     `json:"assigned_to,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// FromTicket maps a domain ticket to its API shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Number:      t.Number,
		Category:    t.Category,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		AssignedTo:  t.AssignedOperatorID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ClosedAt:    t.ClosedAt,
	}
}

// FromTickets maps a slice of tickets.
func FromTickets(list []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(list))
	for i := range list {
		out = append(out, FromTicket(&list[i]))
	}
	return out
}
