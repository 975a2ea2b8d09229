package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/session"
	"github.com/spec-kit/support-bot/internal/texts"
	"github.com/spec-kit/support-bot/pkg/util"
)

// OperatorService orchestrates the support-channel side: card buttons,
// reason-capture sub-flows and relaying thread replies to clients.
type OperatorService struct {
	gw        gateway.Gateway
	sessions  session.Store
	tickets   repository.TicketRepository
	lifecycle *LifecycleService
	routing   *RoutingService
	gwCfg     config.GatewayConfig
	logger    *zap.Logger
}

// OperatorDependencies bundles collaborators for the operator service.
type OperatorDependencies struct {
	Gateway    gateway.Gateway
	Sessions   session.Store
	TicketRepo repository.TicketRepository
	Lifecycle  *LifecycleService
	Routing    *RoutingService
	Config     config.GatewayConfig
	Logger     *zap.Logger
}

// NewOperatorService constructs the service.
func NewOperatorService(deps OperatorDependencies) *OperatorService {
	return &OperatorService{
		gw:        deps.Gateway,
		sessions:  deps.Sessions,
		tickets:   deps.TicketRepo,
		lifecycle: deps.Lifecycle,
		routing:   deps.Routing,
		gwCfg:     deps.Config,
		logger:    deps.Logger,
	}
}

// HandleButton processes "op:*" card buttons pressed in the support channel.
func (s *OperatorService) HandleButton(ctx context.Context, upd gateway.Update) error {
	if !s.gwCfg.IsOperator(upd.UserID) {
		return s.gw.AnswerButton(ctx, upd.CallbackID,
			fmt.Sprintf(texts.OperatorNeedID, upd.UserID), true)
	}

	cb := texts.ParseCallback(upd.Data)
	ticketID, ok := cb.IntArg()
	if !ok {
		return nil
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if repository.IsNotFound(err) {
			return s.gw.AnswerButton(ctx, upd.CallbackID, "Ticket not found.", true)
		}
		return util.NewInternalError(err)
	}

	switch cb.Action {
	case "take":
		return s.take(ctx, upd, ticket)
	case "resume":
		if _, err := s.lifecycle.Resume(ctx, ticket.ID, upd.UserID); err != nil {
			return s.answerLifecycleError(ctx, upd.CallbackID, err)
		}
		return s.gw.AnswerButton(ctx, upd.CallbackID, "Resumed.", false)
	case "close":
		if _, err := s.lifecycle.Close(ctx, ticket.ID, upd.UserID); err != nil {
			return s.answerLifecycleError(ctx, upd.CallbackID, err)
		}
		return s.gw.AnswerButton(ctx, upd.CallbackID, "Closed.", false)
	case "reopen":
		reopened, err := s.lifecycle.ReopenByOperator(ctx, ticket.ID, upd.UserID)
		if err != nil {
			return s.answerLifecycleError(ctx, upd.CallbackID, err)
		}
		if err := s.gw.AnswerButton(ctx, upd.CallbackID,
			fmt.Sprintf("Ticket #%d reopened.", reopened.Number), false); err != nil {
			s.logger.Debug("callback answer failed", zap.Error(err))
		}
		return s.routing.PostThreadNote(ctx, reopened,
			fmt.Sprintf("🔄 <b>#%d</b> reopened.", reopened.Number))
	case "pause":
		return s.startReasonCapture(ctx, upd, ticket, session.StageOpPauseReason, texts.AskPauseReason)
	case "cancel":
		return s.startReasonCapture(ctx, upd, ticket, session.StageOpCancelReason, texts.AskCancelReason)
	case "details":
		return s.startReasonCapture(ctx, upd, ticket, session.StageOpDetailsQuestion, texts.AskDetailsQuestion)
	}
	return nil
}

func (s *OperatorService) take(ctx context.Context, upd gateway.Update, ticket *domain.Ticket) error {
	claimed, err := s.lifecycle.Claim(ctx, ticket.ID, upd.UserID)
	if err != nil {
		if util.HasCode(err, util.CodeAlreadyTaken) {
			return s.gw.AnswerButton(ctx, upd.CallbackID, "Someone beat you to it.", true)
		}
		return err
	}
	if err := s.gw.AnswerButton(ctx, upd.CallbackID,
		fmt.Sprintf("Ticket #%d is yours.", claimed.Number), false); err != nil {
		s.logger.Debug("callback answer failed", zap.Error(err))
	}
	// Fresh card reflecting the new status and buttons.
	if ticket.ThreadID != nil {
		_, _ = s.gw.SendMessage(ctx, ticket.ChannelID, *ticket.ThreadID,
			fmt.Sprintf("🙋 <b>#%d</b> taken.", claimed.Number),
			texts.OperatorKeyboard(claimed.ID, claimed.Status))
	}
	return nil
}

// startReasonCapture arms a sub-flow: the operator's next message in this
// exact thread is the reason (or question). Messages in any other thread
// are ordinary replies and do not complete the capture.
func (s *OperatorService) startReasonCapture(ctx context.Context, upd gateway.Update, ticket *domain.Ticket, stage session.Stage, prompt string) error {
	sess, err := s.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return util.NewInternalError(err)
	}
	sess.Stage = stage
	sess.Fields.TicketID = ticket.ID
	sess.Fields.TicketNumber = ticket.Number
	sess.Fields.ThreadID = upd.ThreadID
	if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
		return util.NewInternalError(err)
	}
	if err := s.gw.AnswerButton(ctx, upd.CallbackID, "", false); err != nil {
		s.logger.Debug("callback answer failed", zap.Error(err))
	}
	_, err = s.gw.SendMessage(ctx, upd.ChatID, upd.ThreadID, prompt, nil)
	return err
}

// HandleThreadMessage processes a message written inside a support-channel
// thread: either it completes a pending reason capture, or it is an
// operator reply to forward to the client.
func (s *OperatorService) HandleThreadMessage(ctx context.Context, upd gateway.Update) error {
	if !s.gwCfg.IsOperator(upd.UserID) {
		return nil
	}

	sess, err := s.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return util.NewInternalError(err)
	}
	switch sess.Stage {
	case session.StageOpPauseReason, session.StageOpCancelReason, session.StageOpDetailsQuestion:
		if sess.Fields.ThreadID != upd.ThreadID {
			// Reply landed in a different thread than the one that armed
			// the capture. Warn there and treat it as a normal reply.
			_, _ = s.gw.SendMessage(ctx, upd.ChatID, upd.ThreadID, texts.ReasonWrongThread, nil)
			return s.relay(ctx, upd)
		}
		return s.completeCapture(ctx, upd, sess)
	}
	return s.relay(ctx, upd)
}

func (s *OperatorService) completeCapture(ctx context.Context, upd gateway.Update, sess *session.Session) error {
	reason := strings.TrimSpace(upd.Text)
	if reason == "" {
		_, err := s.gw.SendMessage(ctx, upd.ChatID, upd.ThreadID, "✍️ A short text reason, please.", nil)
		return err
	}
	ticketID := sess.Fields.TicketID
	stage := sess.Stage
	_ = s.sessions.Clear(ctx, upd.UserID)

	switch stage {
	case session.StageOpPauseReason:
		if _, err := s.lifecycle.Pause(ctx, ticketID, upd.UserID, reason); err != nil {
			return s.reportLifecycleError(ctx, upd, err)
		}
		_, err := s.gw.SendMessage(ctx, upd.ChatID, upd.ThreadID,
			fmt.Sprintf("⏸ <b>#%d</b> on hold.", sess.Fields.TicketNumber), nil)
		return err
	case session.StageOpCancelReason:
		if _, err := s.lifecycle.Cancel(ctx, ticketID, upd.UserID, reason); err != nil {
			return s.reportLifecycleError(ctx, upd, err)
		}
		_, err := s.gw.SendMessage(ctx, upd.ChatID, upd.ThreadID,
			fmt.Sprintf("🚫 <b>#%d</b> cancelled.", sess.Fields.TicketNumber), nil)
		return err
	case session.StageOpDetailsQuestion:
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return util.NewInternalError(err)
		}
		if err := s.routing.SendDetailsRequest(ctx, ticket, reason); err != nil {
			return err
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, upd.ThreadID, texts.DetailsRequested, nil)
		return err
	}
	return nil
}

func (s *OperatorService) relay(ctx context.Context, upd gateway.Update) error {
	ticket, err := s.routing.TicketByThread(ctx, upd.ThreadID, upd.ChatID)
	if err != nil {
		if util.HasCode(err, util.CodeNotFound) {
			// Chatter in an unmapped thread is none of our business.
			return nil
		}
		return err
	}
	return s.routing.ForwardOperatorReply(ctx, ticket, upd)
}

func (s *OperatorService) answerLifecycleError(ctx context.Context, callbackID string, err error) error {
	switch util.CodeOf(err) {
	case util.CodeIllegalTransition:
		return s.gw.AnswerButton(ctx, callbackID, "The ticket is not in that state anymore.", true)
	case util.CodeNotFound:
		return s.gw.AnswerButton(ctx, callbackID, "Ticket not found.", true)
	default:
		return err
	}
}

func (s *OperatorService) reportLifecycleError(ctx context.Context, upd gateway.Update, err error) error {
	if util.HasCode(err, util.CodeIllegalTransition) {
		_, serr := s.gw.SendMessage(ctx, upd.ChatID, upd.ThreadID,
			"⚠️ The ticket is not in that state anymore.", nil)
		return serr
	}
	return err
}
