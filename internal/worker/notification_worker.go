package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
)

// NotificationWorker turns lifecycle events into client notices. Keeping
// delivery behind the dispatcher means a send failure never rolls back a
// state transition.
type NotificationWorker struct {
	tickets  repository.TicketRepository
	feedback repository.FeedbackRepository
	routing  *service.RoutingService
	logger   *zap.Logger
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(tickets repository.TicketRepository, feedback repository.FeedbackRepository, routing *service.RoutingService, logger *zap.Logger) *NotificationWorker {
	return &NotificationWorker{tickets: tickets, feedback: feedback, routing: routing, logger: logger}
}

// Register subscribes the worker's handlers on the dispatcher.
func (w *NotificationWorker) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketStatusChanged, w.onStatusChanged)
	dispatcher.Subscribe(events.EventTicketReopened, w.onReopened)
	dispatcher.Subscribe(events.EventFeedbackReceived, w.onFeedback)
}

func (w *NotificationWorker) onStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	ticket, err := w.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		w.logger.Error("status notice: ticket lookup failed",
			zap.Int64("ticket_id", event.TicketID), zap.Error(err))
		return err
	}
	// The client triggered this themselves; no echo needed.
	if event.Actor.Kind == events.ActorClient && payload.NewStatus == domain.TicketStatusCancelled {
		return nil
	}
	if err := w.routing.NotifyStatusChange(ctx, ticket, payload.NewStatus, payload.Reason); err != nil {
		w.logger.Error("status notice failed",
			zap.Int64("ticket_id", event.TicketID),
			zap.String("new_status", string(payload.NewStatus)),
			zap.Error(err))
		return err
	}
	return nil
}

func (w *NotificationWorker) onReopened(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketReopenedPayload)
	if !ok {
		return nil
	}
	ticket, err := w.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	if payload.ByClient {
		// Tell the thread, not the client (who initiated it).
		return w.routing.PostThreadNote(ctx, ticket,
			fmt.Sprintf("🔄 <b>#%d</b> reopened by the client.", ticket.Number))
	}
	return w.routing.NotifyStatusChange(ctx, ticket, payload.NewStatus, "")
}

func (w *NotificationWorker) onFeedback(ctx context.Context, event events.Event) error {
	ticket, err := w.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return err
	}
	fb, err := w.feedback.GetByTicket(ctx, event.TicketID)
	if err != nil {
		return err
	}
	return w.routing.PostFeedback(ctx, ticket, fb)
}
