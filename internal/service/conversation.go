package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/session"
	"github.com/spec-kit/support-bot/internal/texts"
	"github.com/spec-kit/support-bot/pkg/util"
)

const (
	minDescriptionLen = 10
	maxAttachments    = 10
)

// ConversationService orchestrates the client-side dialogue in private
// chats: onboarding, ticket creation, follow-ups and feedback. Every inbound
// update resolves a stage first (stored, or inferred from accumulated
// fields when the stored stage was lost) and the stage decides what the
// input means.
type ConversationService struct {
	gw         gateway.Gateway
	sessions   session.Store
	bindings   repository.BindingRepository
	projects   repository.ProjectRepository
	clients    repository.ClientRepository
	tickets    repository.TicketRepository
	feedback   repository.FeedbackRepository
	lifecycle  *LifecycleService
	routing    *RoutingService
	hours      *HoursService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ConversationDependencies bundles collaborators for the conversation service.
type ConversationDependencies struct {
	Gateway      gateway.Gateway
	Sessions     session.Store
	BindingRepo  repository.BindingRepository
	ProjectRepo  repository.ProjectRepository
	ClientRepo   repository.ClientRepository
	TicketRepo   repository.TicketRepository
	FeedbackRepo repository.FeedbackRepository
	Lifecycle    *LifecycleService
	Routing      *RoutingService
	Hours        *HoursService
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewConversationService constructs the service.
func NewConversationService(deps ConversationDependencies) *ConversationService {
	return &ConversationService{
		gw:         deps.Gateway,
		sessions:   deps.Sessions,
		bindings:   deps.BindingRepo,
		projects:   deps.ProjectRepo,
		clients:    deps.ClientRepo,
		tickets:    deps.TicketRepo,
		feedback:   deps.FeedbackRepo,
		lifecycle:  deps.Lifecycle,
		routing:    deps.Routing,
		hours:      deps.Hours,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// HandleStart processes /start. A deep-link argument is treated as an invite
// code; otherwise known users go straight to the category picker, users on
// the predefined list get bound silently, and strangers enter triage.
func (s *ConversationService) HandleStart(ctx context.Context, upd gateway.Update) error {
	_ = s.sessions.Clear(ctx, upd.UserID)

	if code := strings.TrimSpace(upd.CommandArg); code != "" {
		return s.tryBindByCode(ctx, upd, code)
	}

	binding, err := s.bindings.Current(ctx, upd.UserID)
	if err == nil {
		_ = s.bindings.Touch(ctx, binding.UserID, binding.ProjectID)
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.WelcomeBack, texts.EscapeHTML(upd.DisplayName)), texts.CategoryKeyboard())
		return err
	}
	if !repository.IsNotFound(err) {
		return util.NewInternalError(err)
	}

	if upd.Username != "" {
		if bound, berr := s.bindPredefined(ctx, upd); berr != nil {
			return berr
		} else if bound {
			_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.Welcome, texts.CategoryKeyboard())
			return err
		}
	}

	_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.Welcome, texts.TriageKeyboard())
	return err
}

// HandleText routes plain text by the effective stage.
func (s *ConversationService) HandleText(ctx context.Context, upd gateway.Update) error {
	sess, err := s.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return util.NewInternalError(err)
	}

	switch sess.EffectiveStage() {
	case session.StageTriageCode:
		return s.triageCode(ctx, upd, sess)
	case session.StageTriageCompany:
		sess.Fields.Company = strings.TrimSpace(upd.Text)
		sess.Stage = session.StageTriageContact
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskContact, texts.SkipContactKeyboard())
		return err
	case session.StageTriageContact:
		return s.finishTriage(ctx, upd, sess, strings.TrimSpace(upd.Text))
	case session.StageDescription, session.StageUrgencyDetails:
		return s.acceptDescription(ctx, upd, sess, session.StageAttachments, texts.AskAttachments, texts.AttachmentsKeyboard())
	case session.StageEditDescription:
		return s.acceptDescription(ctx, upd, sess, session.StageSummary,
			texts.TicketSummary(sess.Fields.Category, strings.TrimSpace(upd.Text), len(sess.Fields.Attachments)),
			texts.SummaryKeyboard())
	case session.StageAttachments, session.StageEditAttachments:
		// Plain text while collecting files is a nudge, not an overwrite.
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskAttachments, texts.AttachmentsKeyboard())
		return err
	case session.StageUrgencyLevel:
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskUrgencyLevel, texts.UrgencyKeyboard())
		return err
	case session.StageFeedbackComment:
		return s.feedbackComment(ctx, upd, sess)
	default:
		return s.routeIdleText(ctx, upd)
	}
}

// HandleAttachment accepts media. During collection it accumulates; outside
// a flow it rides the same idle routing as text.
func (s *ConversationService) HandleAttachment(ctx context.Context, upd gateway.Update) error {
	sess, err := s.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return util.NewInternalError(err)
	}
	stage := sess.EffectiveStage()
	if stage != session.StageAttachments && stage != session.StageEditAttachments {
		return s.routeIdleText(ctx, upd)
	}
	if len(sess.Fields.Attachments) >= maxAttachments {
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.AttachmentSaved, len(sess.Fields.Attachments)), texts.AttachmentsKeyboard())
		return err
	}
	sess.Fields.Attachments = append(sess.Fields.Attachments, session.Attachment{
		FileID:    upd.Attachment.FileID,
		Kind:      upd.Attachment.Kind,
		MessageID: upd.MessageID,
	})
	sess.Stage = stage
	if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
		return util.NewInternalError(err)
	}
	_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
		fmt.Sprintf(texts.AttachmentSaved, len(sess.Fields.Attachments)), texts.AttachmentsKeyboard())
	return err
}

// HandleButton routes inline-button presses in private chats.
func (s *ConversationService) HandleButton(ctx context.Context, upd gateway.Update) error {
	cb := texts.ParseCallback(upd.Data)
	defer func() { _ = s.gw.AnswerButton(ctx, upd.CallbackID, "", false) }()

	switch cb.Scope {
	case "category":
		return s.pickCategory(ctx, upd, cb.Action)
	case "urgency":
		return s.pickUrgency(ctx, upd, cb.Action)
	case "ticket":
		return s.ticketButton(ctx, upd, cb)
	case "menu":
		return s.menuButton(ctx, upd, cb)
	case "client":
		return s.clientTicketButton(ctx, upd, cb)
	case "triage":
		return s.triageButton(ctx, upd, cb)
	case "csat":
		return s.csatButton(ctx, upd, cb)
	case "csat_detail":
		return s.csatDetailButton(ctx, upd, cb)
	default:
		s.logger.Debug("unknown callback scope", zap.String("data", upd.Data))
		return nil
	}
}

// --- onboarding ---

func (s *ConversationService) tryBindByCode(ctx context.Context, upd gateway.Update, code string) error {
	project, err := s.projects.GetByInviteCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			_, serr := s.gw.SendMessage(ctx, upd.ChatID, 0, texts.InviteCodeInvalid, texts.TriageKeyboard())
			return serr
		}
		return util.NewInternalError(err)
	}
	if err := s.bindings.Upsert(ctx, &domain.UserBinding{
		UserID:      upd.UserID,
		Username:    upd.Username,
		DisplayName: upd.DisplayName,
		ProjectID:   project.ID,
	}); err != nil {
		return util.NewInternalError(err)
	}
	_ = s.sessions.Clear(ctx, upd.UserID)
	_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.Welcome, texts.CategoryKeyboard())
	return err
}

func (s *ConversationService) bindPredefined(ctx context.Context, upd gateway.Update) (bool, error) {
	client, err := s.clients.ByPredefinedUsername(ctx, upd.Username)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, util.NewInternalError(err)
	}
	project, err := s.projects.FirstActiveByClient(ctx, client.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, util.NewInternalError(err)
	}
	if err := s.bindings.Upsert(ctx, &domain.UserBinding{
		UserID:      upd.UserID,
		Username:    upd.Username,
		DisplayName: upd.DisplayName,
		ProjectID:   project.ID,
	}); err != nil {
		return false, util.NewInternalError(err)
	}
	s.logger.Info("predefined user bound",
		zap.Int64("user_id", upd.UserID),
		zap.String("username", upd.Username),
		zap.Int64("project_id", project.ID))
	return true, nil
}

func (s *ConversationService) triageCode(ctx context.Context, upd gateway.Update, sess *session.Session) error {
	project, err := s.projects.GetByInviteCode(ctx, upd.Text)
	if err != nil {
		if repository.IsNotFound(err) {
			_, serr := s.gw.SendMessage(ctx, upd.ChatID, 0, texts.InviteCodeInvalid, texts.TriageKeyboard())
			return serr
		}
		return util.NewInternalError(err)
	}
	if err := s.bindings.Upsert(ctx, &domain.UserBinding{
		UserID:      upd.UserID,
		Username:    upd.Username,
		DisplayName: upd.DisplayName,
		ProjectID:   project.ID,
	}); err != nil {
		return util.NewInternalError(err)
	}
	_ = s.sessions.Clear(ctx, upd.UserID)
	_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.Welcome, texts.CategoryKeyboard())
	return err
}

// finishTriage closes the no-code branch: contact details are logged for a
// manual follow-up, no binding and no ticket are created.
func (s *ConversationService) finishTriage(ctx context.Context, upd gateway.Update, sess *session.Session, contact string) error {
	s.logger.Info("manual triage request",
		zap.Int64("user_id", upd.UserID),
		zap.String("username", upd.Username),
		zap.String("company", sess.Fields.Company),
		zap.String("contact", contact))
	_ = s.sessions.Clear(ctx, upd.UserID)
	_, err := s.gw.SendMessage(ctx, upd.ChatID, 0, texts.NoCodeAcknowledged, nil)
	return err
}

func (s *ConversationService) triageButton(ctx context.Context, upd gateway.Update, cb texts.Callback) error {
	sess, err := s.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return util.NewInternalError(err)
	}
	switch cb.Action {
	case "enter_code":
		sess.Stage = session.StageTriageCode
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskInviteCode, nil)
		return err
	case "no_code":
		sess.Stage = session.StageTriageCompany
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskCompany, nil)
		return err
	case "skip_contact":
		return s.finishTriage(ctx, upd, sess, "")
	}
	return nil
}

// --- ticket creation ---

func (s *ConversationService) pickCategory(ctx context.Context, upd gateway.Update, categoryID string) error {
	if !domain.ValidCategory(categoryID) {
		return nil
	}
	binding, err := s.bindings.Current(ctx, upd.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			_, serr := s.gw.SendMessage(ctx, upd.ChatID, 0, texts.NotBoundYet, texts.TriageKeyboard())
			return serr
		}
		return util.NewInternalError(err)
	}

	sess, err := s.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return util.NewInternalError(err)
	}
	editing := sess.Stage == session.StageEditCategory
	sess.Fields.Category = categoryID
	sess.Fields.ProjectID = binding.ProjectID

	switch {
	case categoryID == domain.CategoryUrgent && sess.Fields.UrgencyLevel == "":
		sess.Stage = session.StageUrgencyLevel
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskUrgencyLevel, texts.UrgencyKeyboard())
		return err
	case editing:
		sess.Stage = session.StageSummary
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		return s.showSummary(ctx, upd, sess)
	default:
		sess.Stage = session.StageDescription
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskDescription, nil)
		return err
	}
}

func (s *ConversationService) pickUrgency(ctx context.Context, upd gateway.Update, level string) error {
	sess, err := s.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return util.NewInternalError(err)
	}
	sess.Fields.UrgencyLevel = level
	sess.Stage = session.StageUrgencyDetails
	if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
		return util.NewInternalError(err)
	}
	_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskUrgencyDetails, nil)
	return err
}

func (s *ConversationService) acceptDescription(ctx context.Context, upd gateway.Update, sess *session.Session, next session.Stage, prompt string, kb *gateway.Keyboard) error {
	text := strings.TrimSpace(upd.Text)
	if len([]rune(text)) < minDescriptionLen {
		_, err := s.gw.SendMessage(ctx, upd.ChatID, 0, texts.DescriptionTooShort, nil)
		return err
	}
	sess.Fields.Description = text
	sess.Stage = next
	if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
		return util.NewInternalError(err)
	}
	_, err := s.gw.SendMessage(ctx, upd.ChatID, 0, prompt, kb)
	return err
}

func (s *ConversationService) showSummary(ctx context.Context, upd gateway.Update, sess *session.Session) error {
	_, err := s.gw.SendMessage(ctx, upd.ChatID, 0,
		texts.TicketSummary(sess.Fields.Category, sess.Fields.Description, len(sess.Fields.Attachments)),
		texts.SummaryKeyboard())
	return err
}

func (s *ConversationService) ticketButton(ctx context.Context, upd gateway.Update, cb texts.Callback) error {
	sess, err := s.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return util.NewInternalError(err)
	}
	switch cb.Action {
	case "skip_attachments", "show_summary":
		// Pressing "Done" twice lands here twice; the second press just
		// re-renders the summary.
		sess.Stage = session.StageSummary
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		return s.showSummary(ctx, upd, sess)
	case "edit_category":
		sess.Stage = session.StageEditCategory
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.Welcome, texts.CategoryKeyboard())
		return err
	case "edit_description":
		sess.Stage = session.StageEditDescription
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskDescription, nil)
		return err
	case "edit_attachments":
		sess.Fields.Attachments = nil
		sess.Stage = session.StageEditAttachments
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskAttachments, texts.AttachmentsKeyboard())
		return err
	case "cancel":
		_ = s.sessions.Clear(ctx, upd.UserID)
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.Welcome, texts.CategoryKeyboard())
		return err
	case "submit":
		return s.submit(ctx, upd, sess)
	case "new":
		_ = s.sessions.Clear(ctx, upd.UserID)
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.Welcome, texts.CategoryKeyboard())
		return err
	}
	return nil
}

// submit turns the accumulated session into a real ticket.
func (s *ConversationService) submit(ctx context.Context, upd gateway.Update, sess *session.Session) error {
	if sess.Fields.Category == "" || sess.Fields.Description == "" {
		_, err := s.gw.SendMessage(ctx, upd.ChatID, 0, texts.SessionExpired, texts.CategoryKeyboard())
		return err
	}
	project, err := s.projects.GetByID(ctx, sess.Fields.ProjectID)
	if err != nil {
		return util.NewInternalError(err)
	}
	client, err := s.clients.GetByID(ctx, project.ClientID)
	if err != nil {
		return util.NewInternalError(err)
	}
	threadID, channelID, err := s.routing.ResolveThread(ctx, client.ID)
	if err != nil {
		return err
	}

	ticket, err := s.lifecycle.Create(ctx, TicketCreateInput{
		ProjectID:    project.ID,
		ClientUserID: upd.UserID,
		Category:     sess.Fields.Category,
		UrgencyLevel: sess.Fields.UrgencyLevel,
		Description:  sess.Fields.Description,
		ChannelID:    channelID,
		ThreadID:     &threadID,
		FirstMessage: &domain.Message{
			Direction:    domain.DirectionClient,
			Type:         domain.MessageTypeText,
			Content:      sess.Fields.Description,
			AuthorUserID: upd.UserID,
		},
	})
	if err != nil {
		return err
	}

	cardPosted := true
	if perr := s.routing.PostTicketCard(ctx, ticket, client.Name, upd.DisplayName, upd.Username); perr != nil {
		s.logger.Error("ticket card post failed", zap.Int64("ticket_id", ticket.ID), zap.Error(perr))
		cardPosted = false
	}
	for _, att := range sess.Fields.Attachments {
		if ferr := s.gw.ForwardMessage(ctx, channelID, threadID, upd.ChatID, att.MessageID); ferr != nil {
			s.logger.Warn("attachment forward failed",
				zap.Int64("ticket_id", ticket.ID), zap.Error(ferr))
		}
	}

	_ = s.sessions.Clear(ctx, upd.UserID)
	confirmation := fmt.Sprintf(texts.TicketSubmitted, ticket.Number, domain.StatusProgressBar(ticket.Status))
	if _, err := s.gw.SendMessage(ctx, upd.ChatID, 0, confirmation, nil); err != nil {
		return err
	}
	if !cardPosted {
		_, _ = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.TicketDeliveryDelayed, ticket.Number), nil)
	}
	if !s.hours.Within() {
		start, end, tz := s.hours.Window()
		_, _ = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.OutsideWorkingHours, start, end, tz), nil)
	}
	return nil
}

// --- idle routing ---

// routeIdleText decides what a message outside any flow means: an addition
// to the active ticket, a follow-up to a just-closed one, or noise that
// deserves the menu.
func (s *ConversationService) routeIdleText(ctx context.Context, upd gateway.Update) error {
	ticket, err := s.tickets.ActiveByUser(ctx, upd.UserID)
	if err == nil {
		if ferr := s.routing.ForwardClientMessage(ctx, ticket, upd); ferr != nil {
			return ferr
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.ActiveTicketForwarded, ticket.Number),
			texts.ActiveTicketKeyboard(ticket.Number, ticket.Status))
		return err
	}
	if !repository.IsNotFound(err) {
		return util.NewInternalError(err)
	}

	recent, err := s.tickets.RecentClosedByUser(ctx, upd.UserID, s.graceCutoff())
	if err == nil {
		_, serr := s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.ReopenConfirm, recent.Number), texts.RecentClosedKeyboard(recent.Number))
		return serr
	}
	if !repository.IsNotFound(err) {
		return util.NewInternalError(err)
	}

	_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.NoActiveTicket, texts.MenuKeyboard())
	return err
}

func (s *ConversationService) graceCutoff() time.Time {
	return time.Now().Add(-GraceWindow)
}

// --- menu and per-ticket client actions ---

func (s *ConversationService) menuButton(ctx context.Context, upd gateway.Update, cb texts.Callback) error {
	switch cb.Action {
	case "new_request":
		_ = s.sessions.Clear(ctx, upd.UserID)
		_, err := s.gw.SendMessage(ctx, upd.ChatID, 0, texts.Welcome, texts.CategoryKeyboard())
		return err
	case "my_tickets":
		return s.listMyTickets(ctx, upd)
	case "add_details":
		number, ok := cb.IntArg()
		if !ok {
			return nil
		}
		_, err := s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf("✍️ Just write here — your message will be added to request <b>#%d</b>.", number), nil)
		return err
	}
	return nil
}

func (s *ConversationService) listMyTickets(ctx context.Context, upd gateway.Update) error {
	list, err := s.tickets.ListByUser(ctx, upd.UserID, 10)
	if err != nil {
		return util.NewInternalError(err)
	}
	if len(list) == 0 {
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.MyTicketsEmpty, texts.MenuKeyboard())
		return err
	}
	var b strings.Builder
	b.WriteString("📋 <b>Your requests</b>\n\n")
	for _, t := range list {
		b.WriteString(texts.TicketLine(t))
		b.WriteString("\n")
	}
	recentClosed := 0
	if recent, rerr := s.tickets.RecentClosedByUser(ctx, upd.UserID, s.graceCutoff()); rerr == nil {
		recentClosed = recent.Number
	}
	_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, b.String(), texts.MyTicketsKeyboard(recentClosed))
	return err
}

func (s *ConversationService) clientTicketButton(ctx context.Context, upd gateway.Update, cb texts.Callback) error {
	number, ok := cb.IntArg()
	if !ok {
		return nil
	}
	ticket, err := s.tickets.GetByNumber(ctx, int(number))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return util.NewInternalError(err)
	}
	if ticket.ClientUserID != upd.UserID {
		return nil
	}

	switch cb.Action {
	case "cancel":
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.CancelConfirm, ticket.Number), texts.ConfirmCancelKeyboard(ticket.Number))
		return err
	case "cancel_confirm":
		if _, cerr := s.lifecycle.ClientSelfCancel(ctx, ticket.ID, upd.UserID); cerr != nil {
			if util.HasCode(cerr, util.CodeIllegalTransition) {
				_ = s.gw.AnswerButton(ctx, upd.CallbackID, "An operator already started on this one.", true)
				return nil
			}
			return cerr
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.TicketCancelledByClient, ticket.Number), texts.MenuKeyboard())
		return err
	case "reopen":
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.ReopenConfirm, ticket.Number), texts.ConfirmReopenKeyboard(ticket.Number))
		return err
	case "reopen_confirm":
		if _, rerr := s.lifecycle.ReopenByClient(ctx, ticket.ID, upd.UserID); rerr != nil {
			if util.HasCode(rerr, util.CodeIllegalTransition) {
				_, serr := s.gw.SendMessage(ctx, upd.ChatID, 0,
					fmt.Sprintf(texts.ReopenTooLate, ticket.Number), texts.MenuKeyboard())
				return serr
			}
			return rerr
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.ReopenDone, ticket.Number), nil)
		return err
	case "followup":
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.ReopenConfirm, ticket.Number), texts.ConfirmFollowUpKeyboard(ticket.Number))
		return err
	case "followup_confirm":
		// The conversation continues where it stopped: the ticket goes back
		// in progress and keeps its operator.
		if _, rerr := s.lifecycle.ReopenForFollowUp(ctx, ticket.ID, upd.UserID); rerr != nil {
			if util.HasCode(rerr, util.CodeIllegalTransition) {
				_, serr := s.gw.SendMessage(ctx, upd.ChatID, 0,
					fmt.Sprintf(texts.ReopenTooLate, ticket.Number), texts.MenuKeyboard())
				return serr
			}
			return rerr
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0,
			fmt.Sprintf(texts.FollowUpReopened, ticket.Number), nil)
		return err
	}
	return nil
}

// --- feedback ---

func (s *ConversationService) csatButton(ctx context.Context, upd gateway.Update, cb texts.Callback) error {
	ticketID, ok := cb.IntArg()
	if !ok {
		return nil
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return util.NewInternalError(err)
	}
	if ticket.ClientUserID != upd.UserID {
		return nil
	}

	switch cb.Action {
	case "positive", "negative":
		csat := domain.CSATPositive
		if cb.Action == "negative" {
			csat = domain.CSATNegative
		}
		created, cerr := s.feedback.Create(ctx, &domain.Feedback{TicketID: ticket.ID, CSAT: csat})
		if cerr != nil {
			return util.NewInternalError(cerr)
		}
		if !created {
			// Repeated press on an old keyboard.
			_ = s.gw.AnswerButton(ctx, upd.CallbackID, "Already recorded, thank you!", false)
			return nil
		}
		sess, serr := s.sessions.Get(ctx, upd.UserID)
		if serr != nil {
			return util.NewInternalError(serr)
		}
		sess.Fields.FeedbackTicketID = ticket.ID
		if csat == domain.CSATNegative {
			sess.Stage = session.StageFeedbackComment
			if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
				return util.NewInternalError(err)
			}
			_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskFeedbackComment, nil)
			return err
		}
		sess.Stage = session.StageRatingSpeed
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskRatingSpeed, texts.RatingKeyboard("speed", ticket.ID))
		return err
	case "skip_detailed":
		_ = s.sessions.Clear(ctx, upd.UserID)
		s.publishFeedback(ctx, upd.UserID, ticket.ID)
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.FeedbackThanks, texts.MenuKeyboard())
		return err
	}
	return nil
}

func (s *ConversationService) csatDetailButton(ctx context.Context, upd gateway.Update, cb texts.Callback) error {
	rating, ticketID, ok := cb.RatingArg()
	if !ok {
		return nil
	}
	sess, err := s.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return util.NewInternalError(err)
	}

	switch cb.Action {
	case "speed":
		sess.Fields.SpeedRating = rating
		sess.Stage = session.StageRatingQuality
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskRatingQuality, texts.RatingKeyboard("quality", ticketID))
		return err
	case "quality":
		sess.Fields.QualityRating = rating
		sess.Stage = session.StageRatingPolite
		if err := s.sessions.Put(ctx, upd.UserID, sess); err != nil {
			return util.NewInternalError(err)
		}
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.AskRatingPoliteness, texts.RatingKeyboard("politeness", ticketID))
		return err
	case "politeness":
		speed, quality := sess.Fields.SpeedRating, sess.Fields.QualityRating
		var speedPtr, qualityPtr *int
		if speed > 0 {
			speedPtr = &speed
		}
		if quality > 0 {
			qualityPtr = &quality
		}
		if err := s.feedback.UpdateRatings(ctx, ticketID, speedPtr, qualityPtr, &rating); err != nil {
			return util.NewInternalError(err)
		}
		_ = s.sessions.Clear(ctx, upd.UserID)
		s.publishFeedback(ctx, upd.UserID, ticketID)
		_, err = s.gw.SendMessage(ctx, upd.ChatID, 0, texts.RatingsThanks, texts.MenuKeyboard())
		return err
	}
	return nil
}

func (s *ConversationService) feedbackComment(ctx context.Context, upd gateway.Update, sess *session.Session) error {
	ticketID := sess.Fields.FeedbackTicketID
	if ticketID == 0 {
		return s.routeIdleText(ctx, upd)
	}
	if err := s.feedback.UpdateComment(ctx, ticketID, strings.TrimSpace(upd.Text)); err != nil {
		return util.NewInternalError(err)
	}
	_ = s.sessions.Clear(ctx, upd.UserID)
	s.publishFeedback(ctx, upd.UserID, ticketID)
	_, err := s.gw.SendMessage(ctx, upd.ChatID, 0, texts.FeedbackThanks, texts.MenuKeyboard())
	return err
}

// publishFeedback emits the feedback event; the notification worker posts
// the card into the ticket's thread.
func (s *ConversationService) publishFeedback(ctx context.Context, userID, ticketID int64) {
	if s.dispatcher == nil {
		return
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return
	}
	fb, err := s.feedback.GetByTicket(ctx, ticketID)
	if err != nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventFeedbackReceived,
		TicketID:  ticketID,
		Actor:     events.Actor{Kind: events.ActorClient, UserID: userID},
		Timestamp: time.Now(),
		Payload: events.FeedbackReceivedPayload{
			Number:  ticket.Number,
			CSAT:    fb.CSAT,
			Comment: fb.Comment,
		},
	})
}
