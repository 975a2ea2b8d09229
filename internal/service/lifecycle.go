package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/pkg/util"
)

// GraceWindow is how long after completion a client may still reopen a
// ticket instead of opening a new one.
const GraceWindow = 48 * time.Hour

// LifecycleService owns ticket state transitions. Every mutation goes through
// here so the transition table is enforced in exactly one place.
type LifecycleService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ProjectID    int64
	ClientUserID int64
	Category     string
	UrgencyLevel string
	Description  string
	ChannelID    int64
	ThreadID     *int64
	FirstMessage *domain.Message
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
	}
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:        {domain.TicketStatusInProgress, domain.TicketStatusCompleted, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress: {domain.TicketStatusOnHold, domain.TicketStatusCompleted, domain.TicketStatusCancelled},
	domain.TicketStatusOnHold:     {domain.TicketStatusInProgress, domain.TicketStatusCancelled},
	domain.TicketStatusCompleted:  {domain.TicketStatusNew, domain.TicketStatusInProgress},
	domain.TicketStatusCancelled:  {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Create opens a new ticket, allocating its sequential number.
func (s *LifecycleService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, util.NewValidationError("description is required", nil)
	}
	if !domain.ValidCategory(input.Category) {
		return nil, util.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}

	priority := domain.TicketPriorityNormal
	if input.Category == domain.CategoryUrgent {
		priority = domain.TicketPriorityUrgent
	}
	if input.UrgencyLevel != "" {
		description = "[" + input.UrgencyLevel + "] " + description
	}

	ticket := &domain.Ticket{
		ProjectID:    input.ProjectID,
		ClientUserID: input.ClientUserID,
		Category:     input.Category,
		Description:  description,
		Priority:     priority,
		Status:       domain.TicketStatusNew,
		ChannelID:    input.ChannelID,
		ThreadID:     input.ThreadID,
	}
	if err := s.tickets.Create(ctx, ticket, input.FirstMessage); err != nil {
		return nil, util.NewInternalError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    clientActor(input.ClientUserID),
		Payload: events.TicketCreatedPayload{
			Number:   ticket.Number,
			Category: ticket.Category,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// Claim assigns the ticket to an operator. Exactly one concurrent caller
// wins; losers get an ALREADY_TAKEN error naming the holder.
func (s *LifecycleService) Claim(ctx context.Context, ticketID, operatorID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.Claim(ctx, ticketID, operatorID)
	if err == nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketClaimed,
			TicketID: ticket.ID,
			Actor:    operatorActor(operatorID),
			Payload: events.TicketClaimedPayload{
				Number:     ticket.Number,
				OperatorID: operatorID,
			},
		})
		return ticket, nil
	}
	if errors.Is(err, repository.ErrAlreadyClaimed) {
		holder := int64(0)
		if current, gerr := s.tickets.GetByID(ctx, ticketID); gerr == nil && current.AssignedOperatorID != nil {
			holder = *current.AssignedOperatorID
		}
		return nil, util.NewAlreadyTaken(ticketID, holder)
	}
	if repository.IsNotFound(err) {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return nil, util.NewInternalError(err)
}

// Pause moves an in-progress ticket on hold. Reason is required and travels
// to the client in the status notice.
func (s *LifecycleService) Pause(ctx context.Context, ticketID, operatorID int64, reason string) (*domain.Ticket, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, util.NewValidationError("hold reason is required", nil)
	}
	return s.transition(ctx, ticketID, domain.TicketStatusOnHold, operatorActor(operatorID), reason)
}

// Resume brings an on-hold ticket back in progress.
func (s *LifecycleService) Resume(ctx context.Context, ticketID, operatorID int64) (*domain.Ticket, error) {
	return s.transition(ctx, ticketID, domain.TicketStatusInProgress, operatorActor(operatorID), "")
}

// Close completes the ticket and stamps ClosedAt.
func (s *LifecycleService) Close(ctx context.Context, ticketID, operatorID int64) (*domain.Ticket, error) {
	return s.transition(ctx, ticketID, domain.TicketStatusCompleted, operatorActor(operatorID), "")
}

// Cancel terminates the ticket. Reason is mandatory: cancellations without
// an explanation frustrate clients.
func (s *LifecycleService) Cancel(ctx context.Context, ticketID, operatorID int64, reason string) (*domain.Ticket, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, util.NewValidationError("cancel reason is required", nil)
	}
	return s.transition(ctx, ticketID, domain.TicketStatusCancelled, operatorActor(operatorID), reason)
}

// ClientSelfCancel lets the author withdraw a ticket, but only before an
// operator has started on it.
func (s *LifecycleService) ClientSelfCancel(ctx context.Context, ticketID, userID int64) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.ClientUserID != userID {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Status != domain.TicketStatusNew {
		return nil, util.NewIllegalTransition(string(ticket.Status), string(domain.TicketStatusCancelled))
	}
	return s.apply(ctx, ticket, domain.TicketStatusCancelled, clientActor(userID), "cancelled by client")
}

// ReopenByClient reopens a completed ticket within the grace window. The
// ticket returns to the unassigned queue.
func (s *LifecycleService) ReopenByClient(ctx context.Context, ticketID, userID int64) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.ClientUserID != userID {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Status != domain.TicketStatusCompleted {
		return nil, util.NewIllegalTransition(string(ticket.Status), string(domain.TicketStatusNew))
	}
	if ticket.ClosedAt == nil || time.Since(*ticket.ClosedAt) > GraceWindow {
		return nil, util.NewIllegalTransition(string(ticket.Status), string(domain.TicketStatusNew))
	}

	ticket.Status = domain.TicketStatusNew
	ticket.ClosedAt = nil
	ticket.AssignedOperatorID = nil
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.NewInternalError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: ticket.ID,
		Actor:    clientActor(userID),
		Payload: events.TicketReopenedPayload{
			Number:    ticket.Number,
			NewStatus: ticket.Status,
			ByClient:  true,
		},
	})
	return ticket, nil
}

// ReopenForFollowUp reopens a recently completed ticket because the client
// kept writing about it. Unlike ReopenByClient the conversation continues
// where it stopped: the ticket goes straight back in progress and keeps its
// operator, so the follow-up lands with whoever handled it.
func (s *LifecycleService) ReopenForFollowUp(ctx context.Context, ticketID, userID int64) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.ClientUserID != userID {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Status != domain.TicketStatusCompleted {
		return nil, util.NewIllegalTransition(string(ticket.Status), string(domain.TicketStatusInProgress))
	}
	if ticket.ClosedAt == nil || time.Since(*ticket.ClosedAt) > GraceWindow {
		return nil, util.NewIllegalTransition(string(ticket.Status), string(domain.TicketStatusInProgress))
	}

	ticket.Status = domain.TicketStatusInProgress
	ticket.ClosedAt = nil
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.NewInternalError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: ticket.ID,
		Actor:    clientActor(userID),
		Payload: events.TicketReopenedPayload{
			Number:    ticket.Number,
			NewStatus: ticket.Status,
			ByClient:  true,
		},
	})
	return ticket, nil
}

// ReopenByOperator reopens a completed ticket straight into the reopening
// operator's queue. Operators are not bound by the grace window.
func (s *LifecycleService) ReopenByOperator(ctx context.Context, ticketID, operatorID int64) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusCompleted {
		return nil, util.NewIllegalTransition(string(ticket.Status), string(domain.TicketStatusInProgress))
	}

	ticket.Status = domain.TicketStatusInProgress
	ticket.ClosedAt = nil
	ticket.AssignedOperatorID = &operatorID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.NewInternalError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: ticket.ID,
		Actor:    operatorActor(operatorID),
		Payload: events.TicketReopenedPayload{
			Number:    ticket.Number,
			NewStatus: ticket.Status,
			ByClient:  false,
		},
	})
	return ticket, nil
}

func (s *LifecycleService) get(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.NewInternalError(err)
	}
	return ticket, nil
}

func (s *LifecycleService) transition(ctx context.Context, ticketID int64, next domain.TicketStatus, actor events.Actor, reason string) (*domain.Ticket, error) {
	ticket, err := s.get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, ticket, next, actor, reason)
}

func (s *LifecycleService) apply(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus, actor events.Actor, reason string) (*domain.Ticket, error) {
	if !isValidTransition(ticket.Status, next) {
		return nil, util.NewIllegalTransition(string(ticket.Status), string(next))
	}
	oldStatus := ticket.Status
	ticket.Status = next
	if next.IsTerminal() {
		now := time.Now()
		ticket.ClosedAt = &now
	} else {
		ticket.ClosedAt = nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.NewInternalError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketStatusChangedPayload{
			Number:    ticket.Number,
			OldStatus: oldStatus,
			NewStatus: next,
			Reason:    reason,
		},
	})
	return ticket, nil
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func clientActor(userID int64) events.Actor {
	return events.Actor{Kind: events.ActorClient, UserID: userID}
}

func operatorActor(operatorID int64) events.Actor {
	return events.Actor{Kind: events.ActorOperator, UserID: operatorID}
}
