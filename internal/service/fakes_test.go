package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/repository"
)

// fakeTicketRepo mirrors the SQL repository's concurrency contract in
// memory: sequential numbers under a lock, a compare-and-set claim, and the
// first message persisted in the same Create, like the transactional insert.
type fakeTicketRepo struct {
	mu       sync.Mutex
	nextID   int64
	counter  int
	byID     map[int64]*domain.Ticket
	messages *fakeMessageRepo
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{byID: make(map[int64]*domain.Ticket)}
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket, firstMessage *domain.Message) error {
	f.mu.Lock()
	f.counter++
	f.nextID++
	ticket.Number = f.counter
	ticket.ID = f.nextID
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	cp := *ticket
	f.byID[ticket.ID] = &cp
	f.mu.Unlock()

	if firstMessage != nil && f.messages != nil {
		firstMessage.TicketID = ticket.ID
		return f.messages.Create(ctx, firstMessage)
	}
	return nil
}

func (f *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	cp := *ticket
	f.byID[ticket.ID] = &cp
	return nil
}

func (f *fakeTicketRepo) Claim(_ context.Context, ticketID, operatorID int64) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.byID[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	claimable := ticket.Status == domain.TicketStatusNew ||
		(ticket.Status == domain.TicketStatusInProgress && ticket.AssignedOperatorID != nil && *ticket.AssignedOperatorID == operatorID)
	if !claimable {
		return nil, repository.ErrAlreadyClaimed
	}
	ticket.Status = domain.TicketStatusInProgress
	op := operatorID
	ticket.AssignedOperatorID = &op
	if ticket.FirstResponseAt == nil {
		now := time.Now()
		ticket.FirstResponseAt = &now
	}
	cp := *ticket
	return &cp, nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *ticket
	return &cp, nil
}

func (f *fakeTicketRepo) GetByNumber(_ context.Context, number int) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticket := range f.byID {
		if ticket.Number == number {
			cp := *ticket
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ByThread(_ context.Context, threadID, channelID int64) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *domain.Ticket
	for _, ticket := range f.byID {
		if ticket.ThreadID != nil && *ticket.ThreadID == threadID && ticket.ChannelID == channelID {
			if found == nil || ticket.CreatedAt.After(found.CreatedAt) {
				found = ticket
			}
		}
	}
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *found
	return &cp, nil
}

func (f *fakeTicketRepo) ActiveByUser(_ context.Context, userID int64) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *domain.Ticket
	for _, ticket := range f.byID {
		if ticket.ClientUserID == userID && !ticket.Status.IsTerminal() {
			if found == nil || ticket.CreatedAt.After(found.CreatedAt) {
				found = ticket
			}
		}
	}
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *found
	return &cp, nil
}

func (f *fakeTicketRepo) RecentClosedByUser(_ context.Context, userID int64, since time.Time) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *domain.Ticket
	for _, ticket := range f.byID {
		if ticket.ClientUserID == userID && ticket.Status == domain.TicketStatusCompleted &&
			ticket.ClosedAt != nil && !ticket.ClosedAt.Before(since) {
			if found == nil || ticket.ClosedAt.After(*found.ClosedAt) {
				found = ticket
			}
		}
	}
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *found
	return &cp, nil
}

func (f *fakeTicketRepo) ListByUser(_ context.Context, userID int64, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range f.byID {
		if ticket.ClientUserID == userID {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListByOperator(_ context.Context, operatorID int64, onlyActive bool, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range f.byID {
		if ticket.AssignedOperatorID == nil || *ticket.AssignedOperatorID != operatorID {
			continue
		}
		if onlyActive && ticket.Status.IsTerminal() {
			continue
		}
		out = append(out, *ticket)
	}
	return out, nil
}

func (f *fakeTicketRepo) ListUnassigned(_ context.Context, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range f.byID {
		if ticket.AssignedOperatorID == nil && ticket.Status == domain.TicketStatusNew {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

type fakeClientRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Client
	byUser map[string]int64
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{byID: make(map[int64]*domain.Client), byUser: make(map[string]int64)}
}

func (f *fakeClientRepo) Create(_ context.Context, client *domain.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	client.ID = f.nextID
	client.CreatedAt = time.Now()
	cp := *client
	f.byID[client.ID] = &cp
	return nil
}

func (f *fakeClientRepo) GetByID(_ context.Context, id int64) (*domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	client, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *client
	return &cp, nil
}

func (f *fakeClientRepo) AttachThread(_ context.Context, clientID, threadID, channelID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	client, ok := f.byID[clientID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if client.ThreadID != nil {
		return false, nil
	}
	client.ThreadID = &threadID
	client.ChannelID = &channelID
	return true, nil
}

func (f *fakeClientRepo) ByPredefinedUsername(_ context.Context, username string) (*domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byUser[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *f.byID[id]
	return &cp, nil
}

type fakeProjectRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{byID: make(map[int64]*domain.Project)}
}

func (f *fakeProjectRepo) Create(_ context.Context, project *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	project.ID = f.nextID
	project.CreatedAt = time.Now()
	cp := *project
	f.byID[project.ID] = &cp
	return nil
}

func (f *fakeProjectRepo) GetByID(_ context.Context, id int64) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	project, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *project
	return &cp, nil
}

func (f *fakeProjectRepo) GetByInviteCode(_ context.Context, code string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, project := range f.byID {
		if project.InviteCode != nil && strings.EqualFold(*project.InviteCode, code) && project.IsActive {
			cp := *project
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeProjectRepo) FirstActiveByClient(_ context.Context, clientID int64) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, project := range f.byID {
		if project.ClientID == clientID && project.IsActive {
			cp := *project
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeProjectRepo) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byID)), nil
}

type fakeBindingRepo struct {
	mu     sync.Mutex
	byUser map[int64]*domain.UserBinding
}

func newFakeBindingRepo() *fakeBindingRepo {
	return &fakeBindingRepo{byUser: make(map[int64]*domain.UserBinding)}
}

func (f *fakeBindingRepo) Current(_ context.Context, userID int64) (*domain.UserBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	binding, ok := f.byUser[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *binding
	return &cp, nil
}

func (f *fakeBindingRepo) Upsert(_ context.Context, binding *domain.UserBinding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	binding.UpdatedAt = time.Now()
	cp := *binding
	f.byUser[binding.UserID] = &cp
	return nil
}

func (f *fakeBindingRepo) Touch(_ context.Context, userID, projectID int64) error {
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   int64
	byTicket map[int64][]domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byTicket: make(map[int64][]domain.Message)}
}

func (f *fakeMessageRepo) Create(_ context.Context, message *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	message.ID = f.nextID
	message.CreatedAt = time.Now()
	f.byTicket[message.TicketID] = append(f.byTicket[message.TicketID], *message)
	return nil
}

func (f *fakeMessageRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.byTicket[ticketID]...), nil
}

type fakeFeedbackRepo struct {
	mu       sync.Mutex
	nextID   int64
	byTicket map[int64]*domain.Feedback
}

func newFakeFeedbackRepo() *fakeFeedbackRepo {
	return &fakeFeedbackRepo{byTicket: make(map[int64]*domain.Feedback)}
}

func (f *fakeFeedbackRepo) Create(_ context.Context, feedback *domain.Feedback) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byTicket[feedback.TicketID]; ok {
		return false, nil
	}
	f.nextID++
	feedback.ID = f.nextID
	feedback.CreatedAt = time.Now()
	cp := *feedback
	f.byTicket[feedback.TicketID] = &cp
	return true, nil
}

func (f *fakeFeedbackRepo) GetByTicket(_ context.Context, ticketID int64) (*domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feedback, ok := f.byTicket[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *feedback
	return &cp, nil
}

func (f *fakeFeedbackRepo) UpdateRatings(_ context.Context, ticketID int64, speed, quality, politeness *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	feedback, ok := f.byTicket[ticketID]
	if !ok {
		return nil
	}
	if speed != nil {
		v := *speed
		feedback.SpeedRating = &v
	}
	if quality != nil {
		v := *quality
		feedback.QualityRating = &v
	}
	if politeness != nil {
		v := *politeness
		feedback.PolitenessRating = &v
	}
	return nil
}

func (f *fakeFeedbackRepo) UpdateComment(_ context.Context, ticketID int64, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if feedback, ok := f.byTicket[ticketID]; ok {
		feedback.Comment = comment
	}
	return nil
}

// fakeDispatcher records published events for assertion.
type fakeDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeDispatcher) Publish(_ context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (f *fakeDispatcher) ofType(t events.EventType) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// sentMessage is one outbound gateway call recorded by the fake.
type sentMessage struct {
	ChatID   int64
	ThreadID int64
	Text     string
	Keyboard *gateway.Keyboard
}

// fakeGateway records outbound traffic and hands out thread IDs.
type fakeGateway struct {
	mu            sync.Mutex
	sent          []sentMessage
	forwards      int
	reactions     int
	answers       []string
	nextMessageID int64
	nextThreadID  int64
	threadsMade   int
	createErr     error
	sendErrTo     int64
	sendErr       error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextThreadID: 100}
}

func (f *fakeGateway) SendMessage(_ context.Context, chatID, threadID int64, text string, kb *gateway.Keyboard) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil && chatID == f.sendErrTo {
		return 0, f.sendErr
	}
	f.nextMessageID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, ThreadID: threadID, Text: text, Keyboard: kb})
	return f.nextMessageID, nil
}

func (f *fakeGateway) SendAttachment(_ context.Context, chatID, threadID int64, att gateway.AttachmentRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, ThreadID: threadID, Text: "[attachment]"})
	return nil
}

func (f *fakeGateway) CreateThread(_ context.Context, chatID int64, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.threadsMade++
	f.nextThreadID++
	return f.nextThreadID, nil
}

func (f *fakeGateway) ForwardMessage(_ context.Context, toChatID, threadID, fromChatID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwards++
	return nil
}

func (f *fakeGateway) React(_ context.Context, chatID, messageID int64, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions++
	return nil
}

func (f *fakeGateway) AnswerButton(_ context.Context, callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeGateway) lastTo(chatID int64) (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].ChatID == chatID {
			return f.sent[i], true
		}
	}
	return sentMessage{}, false
}
