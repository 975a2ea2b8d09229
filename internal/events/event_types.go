package events

import (
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketClaimed       EventType = "ticket_claimed"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketReopened      EventType = "ticket_reopened"
	EventFeedbackReceived    EventType = "feedback_received"
)

// ActorKind distinguishes who triggered an event.
type ActorKind string

const (
	ActorClient   ActorKind = "client"
	ActorOperator ActorKind = "operator"
	ActorSystem   ActorKind = "system"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Kind   ActorKind `json:"kind"`
	UserID int64     `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number   int                   `json:"number"`
	Category string                `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	Number     int   `json:"number"`
	OperatorID int64 `json:"operator_id"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Number    int                 `json:"number"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	Number    int                 `json:"number"`
	NewStatus domain.TicketStatus `json:"new_status"`
	ByClient  bool                `json:"by_client"`
}

// FeedbackReceivedPayload payload.
type FeedbackReceivedPayload struct {
	Number  int         `json:"number"`
	CSAT    domain.CSAT `json:"csat"`
	Comment string      `json:"comment,omitempty"`
}
