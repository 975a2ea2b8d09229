package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/texts"
	"github.com/spec-kit/support-bot/pkg/util"
)

// RoutingService moves messages between client chats and the per-client
// threads in the support channel, and keeps the thread mapping consistent.
type RoutingService struct {
	gw            gateway.Gateway
	clients       repository.ClientRepository
	tickets       repository.TicketRepository
	messages      repository.MessageRepository
	supportChatID int64
	logger        *zap.Logger

	// Serializes thread creation per client so a burst of first tickets
	// from one company yields a single thread.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// RoutingDependencies bundles collaborators for the routing service.
type RoutingDependencies struct {
	Gateway       gateway.Gateway
	ClientRepo    repository.ClientRepository
	TicketRepo    repository.TicketRepository
	MessageRepo   repository.MessageRepository
	SupportChatID int64
	Logger        *zap.Logger
}

// NewRoutingService constructs the service.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	return &RoutingService{
		gw:            deps.Gateway,
		clients:       deps.ClientRepo,
		tickets:       deps.TicketRepo,
		messages:      deps.MessageRepo,
		supportChatID: deps.SupportChatID,
		logger:        deps.Logger,
		locks:         make(map[int64]*sync.Mutex),
	}
}

func (s *RoutingService) clientLock(clientID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[clientID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[clientID] = l
	}
	return l
}

// ResolveThread returns the client's thread in the support channel, creating
// it on first use. At most one thread ever exists per client: creation is
// serialized in-process and the database row update is conditional, so a
// racing writer that loses re-reads the winner's thread.
func (s *RoutingService) ResolveThread(ctx context.Context, clientID int64) (threadID, channelID int64, err error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, 0, util.NewNotFound("client", map[string]any{"client_id": clientID})
		}
		return 0, 0, util.NewInternalError(err)
	}
	if client.ThreadID != nil {
		return *client.ThreadID, *client.ChannelID, nil
	}

	lock := s.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: another goroutine may have just created it.
	client, err = s.clients.GetByID(ctx, clientID)
	if err != nil {
		return 0, 0, util.NewInternalError(err)
	}
	if client.ThreadID != nil {
		return *client.ThreadID, *client.ChannelID, nil
	}

	newThreadID, err := s.gw.CreateThread(ctx, s.supportChatID, client.Name)
	if err != nil {
		return 0, 0, util.NewThreadUnavailable(err)
	}
	attached, err := s.clients.AttachThread(ctx, clientID, newThreadID, s.supportChatID)
	if err != nil {
		return 0, 0, util.NewInternalError(err)
	}
	if !attached {
		// Lost a cross-process race; the orphan thread stays empty.
		client, err = s.clients.GetByID(ctx, clientID)
		if err != nil || client.ThreadID == nil {
			return 0, 0, util.NewInternalError(fmt.Errorf("thread attach race for client %d", clientID))
		}
		s.logger.Warn("thread attach lost race",
			zap.Int64("client_id", clientID),
			zap.Int64("orphan_thread_id", newThreadID))
		return *client.ThreadID, *client.ChannelID, nil
	}
	s.logger.Info("client thread created",
		zap.Int64("client_id", clientID),
		zap.Int64("thread_id", newThreadID))
	return newThreadID, s.supportChatID, nil
}

// PostTicketCard posts (or re-posts) the operator card into the ticket's
// thread with status-appropriate action buttons.
func (s *RoutingService) PostTicketCard(ctx context.Context, ticket *domain.Ticket, clientName, userDisplay, username string) error {
	if ticket.ThreadID == nil {
		return util.NewThreadUnavailable(fmt.Errorf("ticket %d has no thread", ticket.ID))
	}
	card := texts.TicketCard(ticket, clientName, userDisplay, username)
	kb := texts.OperatorKeyboard(ticket.ID, ticket.Status)
	_, err := s.gw.SendMessage(ctx, ticket.ChannelID, *ticket.ThreadID, card, kb)
	if err != nil {
		return util.NewThreadUnavailable(err)
	}
	return nil
}

// ForwardClientMessage persists an inbound client message and relays it into
// the ticket's thread under an attribution header.
func (s *RoutingService) ForwardClientMessage(ctx context.Context, ticket *domain.Ticket, upd gateway.Update) error {
	msg := &domain.Message{
		TicketID:         ticket.ID,
		Direction:        domain.DirectionClient,
		GatewayMessageID: upd.MessageID,
		Type:             domain.MessageTypeText,
		Content:          upd.Text,
		AuthorUserID:     upd.UserID,
	}
	if upd.Attachment != nil {
		msg.Type = domain.MessageType(upd.Attachment.Kind)
		msg.FileID = upd.Attachment.FileID
		msg.Content = upd.Attachment.Caption
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return util.NewInternalError(err)
	}
	if ticket.ThreadID == nil {
		return util.NewThreadUnavailable(fmt.Errorf("ticket %d has no thread", ticket.ID))
	}

	header := texts.ClientMessageHeader(ticket.Number, upd.DisplayName, upd.Username)
	if _, err := s.gw.SendMessage(ctx, ticket.ChannelID, *ticket.ThreadID, header, nil); err != nil {
		return util.NewThreadUnavailable(err)
	}
	if err := s.gw.ForwardMessage(ctx, ticket.ChannelID, *ticket.ThreadID, upd.ChatID, upd.MessageID); err != nil {
		return util.NewThreadUnavailable(err)
	}
	return nil
}

// ForwardOperatorReply relays an operator's thread message to the client and
// persists it. Replies into terminal tickets are dropped with a notice so the
// operator knows the client never saw it.
func (s *RoutingService) ForwardOperatorReply(ctx context.Context, ticket *domain.Ticket, upd gateway.Update) error {
	if ticket.Status.IsTerminal() {
		_, _ = s.gw.SendMessage(ctx, upd.ChatID, upd.ThreadID,
			fmt.Sprintf("⚠️ Request #%d is %s, the client will not receive this.", ticket.Number, domain.StatusLabel(ticket.Status)), nil)
		return nil
	}

	msg := &domain.Message{
		TicketID:         ticket.ID,
		Direction:        domain.DirectionOperator,
		GatewayMessageID: upd.MessageID,
		Type:             domain.MessageTypeText,
		Content:          upd.Text,
		AuthorUserID:     upd.UserID,
	}
	if upd.Attachment != nil {
		msg.Type = domain.MessageType(upd.Attachment.Kind)
		msg.FileID = upd.Attachment.FileID
		msg.Content = upd.Attachment.Caption
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return util.NewInternalError(err)
	}

	if upd.Attachment != nil {
		if err := s.gw.SendAttachment(ctx, ticket.ClientUserID, 0, *upd.Attachment); err != nil {
			return util.NewInternalError(err)
		}
	} else {
		text := fmt.Sprintf("💬 <b>Support on #%d:</b>\n\n%s", ticket.Number, texts.EscapeHTML(upd.Text))
		if _, err := s.gw.SendMessage(ctx, ticket.ClientUserID, 0, text, nil); err != nil {
			return util.NewInternalError(err)
		}
	}
	// Delivery acknowledgement; reaction failure is not worth surfacing.
	if err := s.gw.React(ctx, upd.ChatID, upd.MessageID, "👌"); err != nil {
		s.logger.Debug("reaction failed", zap.Error(err))
	}
	return nil
}

// NotifyStatusChange tells the client about a lifecycle transition. The
// completion notice carries the CSAT keyboard.
func (s *RoutingService) NotifyStatusChange(ctx context.Context, ticket *domain.Ticket, newStatus domain.TicketStatus, reason string) error {
	text := texts.StatusNotice(ticket.Number, newStatus, reason)
	var kb *gateway.Keyboard
	if newStatus == domain.TicketStatusCompleted {
		kb = texts.CSATKeyboard(ticket.ID)
	}
	if _, err := s.gw.SendMessage(ctx, ticket.ClientUserID, 0, text, kb); err != nil {
		return util.NewInternalError(err)
	}
	return nil
}

// PostThreadNote drops a system note into the ticket's thread, with the
// action buttons matching the ticket's current status.
func (s *RoutingService) PostThreadNote(ctx context.Context, ticket *domain.Ticket, text string) error {
	if ticket.ThreadID == nil {
		return nil
	}
	kb := texts.OperatorKeyboard(ticket.ID, ticket.Status)
	if _, err := s.gw.SendMessage(ctx, ticket.ChannelID, *ticket.ThreadID, text, kb); err != nil {
		return util.NewThreadUnavailable(err)
	}
	return nil
}

// PostFeedback drops received feedback into the ticket's thread.
func (s *RoutingService) PostFeedback(ctx context.Context, ticket *domain.Ticket, fb *domain.Feedback) error {
	if ticket.ThreadID == nil {
		return nil
	}
	card := texts.FeedbackCard(ticket.Number, fb.CSAT, fb.Comment, fb.SpeedRating, fb.QualityRating, fb.PolitenessRating)
	if _, err := s.gw.SendMessage(ctx, ticket.ChannelID, *ticket.ThreadID, card, nil); err != nil {
		return util.NewInternalError(err)
	}
	return nil
}

// TicketByThread finds the ticket a thread message belongs to. A miss is
// logged and reported as not-found; callers ignore strays.
func (s *RoutingService) TicketByThread(ctx context.Context, threadID, channelID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.ByThread(ctx, threadID, channelID)
	if err != nil {
		if repository.IsNotFound(err) {
			s.logger.Debug("no ticket for thread",
				zap.Int64("thread_id", threadID),
				zap.Int64("channel_id", channelID))
			return nil, util.NewNotFound("ticket", map[string]any{"thread_id": threadID})
		}
		return nil, util.NewInternalError(err)
	}
	return ticket, nil
}

// SendDetailsRequest forwards an operator's clarifying question to the client.
func (s *RoutingService) SendDetailsRequest(ctx context.Context, ticket *domain.Ticket, question string) error {
	text := fmt.Sprintf("❓ <b>Support on #%d:</b>\n\n%s", ticket.Number, texts.EscapeHTML(question))
	if _, err := s.gw.SendMessage(ctx, ticket.ClientUserID, 0, text, nil); err != nil {
		return util.NewInternalError(err)
	}
	return nil
}
