package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusOnHold     TicketStatus = "on_hold"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusCancelled  TicketStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further operator transitions.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled
}

// ActiveStatuses are the states in which a ticket still owns the client's
// conversation: any plain message from the client is appended to it.
var ActiveStatuses = []TicketStatus{TicketStatusNew, TicketStatusInProgress, TicketStatusOnHold}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Ticket is the unit of work routed between a client user and operators.
// Number is allocated gap-free from a counter row in the same transaction
// that inserts the ticket.
type Ticket struct {
	ID                 int64
	Number             int
	ProjectID          int64
	ClientUserID       int64
	Category           string
	Description        string
	Priority           TicketPriority
	Status             TicketStatus
	ChannelID          int64
	ThreadID           *int64
	AssignedOperatorID *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	FirstResponseAt    *time.Time
	ClosedAt           *time.Time
}

// StatusLabel returns the client-facing label for a status.
func StatusLabel(s TicketStatus) string {
	switch s {
	case TicketStatusNew:
		return "New"
	case TicketStatusInProgress:
		return "In progress"
	case TicketStatusOnHold:
		return "On hold"
	case TicketStatusCompleted:
		return "Completed"
	case TicketStatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// StatusEmoji returns the list-view marker for a status.
func StatusEmoji(s TicketStatus) string {
	switch s {
	case TicketStatusNew:
		return "\U0001F195"
	case TicketStatusInProgress:
		return "\U0001F504"
	case TicketStatusOnHold:
		return "⏸️"
	case TicketStatusCompleted:
		return "✅"
	case TicketStatusCancelled:
		return "❌"
	}
	return "❓"
}

// StatusProgressBar returns the four-dot progress indicator for a status.
func StatusProgressBar(s TicketStatus) string {
	switch s {
	case TicketStatusNew:
		return "\U0001F7E2⚪⚪⚪"
	case TicketStatusInProgress:
		return "\U0001F7E2\U0001F7E2⚪⚪"
	case TicketStatusOnHold:
		return "\U0001F7E2\U0001F7E1⚪⚪"
	case TicketStatusCompleted:
		return "\U0001F7E2\U0001F7E2\U0001F7E2\U0001F7E2"
	case TicketStatusCancelled:
		return "\U0001F534⚪⚪⚪"
	}
	return "⚪⚪⚪⚪"
}
