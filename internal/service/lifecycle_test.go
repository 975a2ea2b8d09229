package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/pkg/util"
)

func newLifecycle() (*LifecycleService, *fakeTicketRepo, *fakeDispatcher) {
	tickets := newFakeTicketRepo()
	dispatcher := &fakeDispatcher{}
	svc := NewLifecycleService(LifecycleDependencies{
		TicketRepo: tickets,
		Dispatcher: dispatcher,
	})
	return svc, tickets, dispatcher
}

func createTicket(t *testing.T, svc *LifecycleService, userID int64) *domain.Ticket {
	t.Helper()
	ticket, err := svc.Create(context.Background(), TicketCreateInput{
		ProjectID:    1,
		ClientUserID: userID,
		Category:     "report",
		Description:  "the export button returns a blank file",
		ChannelID:    -100500,
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	svc, _, dispatcher := newLifecycle()

	first := createTicket(t, svc, 10)
	second := createTicket(t, svc, 11)

	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, domain.TicketStatusNew, first.Status)
	assert.Len(t, dispatcher.ofType(events.EventTicketCreated), 2)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newLifecycle()
	ctx := context.Background()

	_, err := svc.Create(ctx, TicketCreateInput{Category: "report", Description: "   "})
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))

	_, err = svc.Create(ctx, TicketCreateInput{Category: "nonsense", Description: "long enough description"})
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))
}

func TestCreateUrgentPriorityAndLevelPrefix(t *testing.T) {
	svc, _, _ := newLifecycle()

	ticket, err := svc.Create(context.Background(), TicketCreateInput{
		ProjectID:    1,
		ClientUserID: 10,
		Category:     domain.CategoryUrgent,
		UrgencyLevel: "critical",
		Description:  "production is down for everyone",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, ticket.Priority)
	assert.Equal(t, "[critical] production is down for everyone", ticket.Description)
}

func TestClaimSingleWinner(t *testing.T) {
	svc, _, dispatcher := newLifecycle()
	ticket := createTicket(t, svc, 10)

	const operators = 8
	var wg sync.WaitGroup
	wins := make(chan int64, operators)
	for i := 0; i < operators; i++ {
		operatorID := int64(1000 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Claim(context.Background(), ticket.ID, operatorID); err == nil {
				wins <- operatorID
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []int64
	for id := range wins {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1)
	assert.Len(t, dispatcher.ofType(events.EventTicketClaimed), 1)

	// The winner may press the button again without losing the ticket.
	_, err := svc.Claim(context.Background(), ticket.ID, winners[0])
	assert.NoError(t, err)
}

func TestClaimLoserSeesHolder(t *testing.T) {
	svc, _, _ := newLifecycle()
	ticket := createTicket(t, svc, 10)

	_, err := svc.Claim(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)

	_, err = svc.Claim(context.Background(), ticket.ID, 2002)
	require.True(t, util.HasCode(err, util.CodeAlreadyTaken))
	derr := util.ToDomainError(err)
	require.NotNil(t, derr)
	assert.Equal(t, int64(2001), derr.Details["assigned_to"])
}

func TestClaimMissingTicket(t *testing.T) {
	svc, _, _ := newLifecycle()

	_, err := svc.Claim(context.Background(), 999, 2001)
	assert.True(t, util.HasCode(err, util.CodeNotFound))
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, svc *LifecycleService, id int64)
		act     func(svc *LifecycleService, id int64) error
		wantErr bool
	}{
		{
			name:    "pause from new is illegal",
			prepare: func(t *testing.T, svc *LifecycleService, id int64) {},
			act: func(svc *LifecycleService, id int64) error {
				_, err := svc.Pause(context.Background(), id, 2001, "waiting on vendor")
				return err
			},
			wantErr: true,
		},
		{
			name: "pause from in_progress",
			prepare: func(t *testing.T, svc *LifecycleService, id int64) {
				_, err := svc.Claim(context.Background(), id, 2001)
				require.NoError(t, err)
			},
			act: func(svc *LifecycleService, id int64) error {
				_, err := svc.Pause(context.Background(), id, 2001, "waiting on vendor")
				return err
			},
		},
		{
			name: "resume from on_hold",
			prepare: func(t *testing.T, svc *LifecycleService, id int64) {
				_, err := svc.Claim(context.Background(), id, 2001)
				require.NoError(t, err)
				_, err = svc.Pause(context.Background(), id, 2001, "waiting on vendor")
				require.NoError(t, err)
			},
			act: func(svc *LifecycleService, id int64) error {
				_, err := svc.Resume(context.Background(), id, 2001)
				return err
			},
		},
		{
			name:    "close straight from new",
			prepare: func(t *testing.T, svc *LifecycleService, id int64) {},
			act: func(svc *LifecycleService, id int64) error {
				_, err := svc.Close(context.Background(), id, 2001)
				return err
			},
		},
		{
			name: "cancel from cancelled is illegal",
			prepare: func(t *testing.T, svc *LifecycleService, id int64) {
				_, err := svc.Cancel(context.Background(), id, 2001, "duplicate")
				require.NoError(t, err)
			},
			act: func(svc *LifecycleService, id int64) error {
				_, err := svc.Cancel(context.Background(), id, 2001, "again")
				return err
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newLifecycle()
			ticket := createTicket(t, svc, 10)
			tt.prepare(t, svc, ticket.ID)
			err := tt.act(svc, ticket.ID)
			if tt.wantErr {
				assert.True(t, util.HasCode(err, util.CodeIllegalTransition), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPauseAndCancelRequireReason(t *testing.T) {
	svc, _, _ := newLifecycle()
	ticket := createTicket(t, svc, 10)
	_, err := svc.Claim(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)

	_, err = svc.Pause(context.Background(), ticket.ID, 2001, "  ")
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))

	_, err = svc.Cancel(context.Background(), ticket.ID, 2001, "")
	assert.True(t, util.HasCode(err, util.CodeValidationFailed))
}

func TestCloseStampsClosedAt(t *testing.T) {
	svc, tickets, dispatcher := newLifecycle()
	ticket := createTicket(t, svc, 10)
	_, err := svc.Claim(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)

	closed, err := svc.Close(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)

	stored, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, stored.Status)

	changed := dispatcher.ofType(events.EventTicketStatusChanged)
	require.NotEmpty(t, changed)
	payload := changed[len(changed)-1].Payload.(events.TicketStatusChangedPayload)
	assert.Equal(t, domain.TicketStatusCompleted, payload.NewStatus)
}

func TestClientSelfCancel(t *testing.T) {
	svc, _, _ := newLifecycle()
	ticket := createTicket(t, svc, 10)

	// A stranger cannot cancel someone else's ticket.
	_, err := svc.ClientSelfCancel(context.Background(), ticket.ID, 99)
	assert.True(t, util.HasCode(err, util.CodeNotFound))

	cancelled, err := svc.ClientSelfCancel(context.Background(), ticket.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCancelled, cancelled.Status)
}

func TestClientSelfCancelOnlyBeforeWork(t *testing.T) {
	svc, _, _ := newLifecycle()
	ticket := createTicket(t, svc, 10)
	_, err := svc.Claim(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)

	_, err = svc.ClientSelfCancel(context.Background(), ticket.ID, 10)
	assert.True(t, util.HasCode(err, util.CodeIllegalTransition))
}

func TestReopenByClientWithinWindow(t *testing.T) {
	svc, tickets, dispatcher := newLifecycle()
	ticket := createTicket(t, svc, 10)
	_, err := svc.Claim(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)

	reopened, err := svc.ReopenByClient(context.Background(), ticket.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	assert.Nil(t, reopened.AssignedOperatorID)

	stored, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, stored.Status)

	reopenedEvents := dispatcher.ofType(events.EventTicketReopened)
	require.Len(t, reopenedEvents, 1)
	assert.True(t, reopenedEvents[0].Payload.(events.TicketReopenedPayload).ByClient)
}

func TestReopenByClientAfterWindow(t *testing.T) {
	svc, tickets, _ := newLifecycle()
	ticket := createTicket(t, svc, 10)
	_, err := svc.Claim(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)

	// Backdate the closure past the grace window.
	stored, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	old := time.Now().Add(-GraceWindow - time.Hour)
	stored.ClosedAt = &old
	require.NoError(t, tickets.Update(context.Background(), stored))

	_, err = svc.ReopenByClient(context.Background(), ticket.ID, 10)
	assert.True(t, util.HasCode(err, util.CodeIllegalTransition))
}

func TestReopenForFollowUpKeepsOperator(t *testing.T) {
	svc, tickets, dispatcher := newLifecycle()
	ticket := createTicket(t, svc, 10)
	_, err := svc.Claim(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)

	reopened, err := svc.ReopenForFollowUp(context.Background(), ticket.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	require.NotNil(t, reopened.AssignedOperatorID)
	assert.Equal(t, int64(2001), *reopened.AssignedOperatorID)

	stored, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)

	reopenedEvents := dispatcher.ofType(events.EventTicketReopened)
	require.Len(t, reopenedEvents, 1)
	payload := reopenedEvents[0].Payload.(events.TicketReopenedPayload)
	assert.True(t, payload.ByClient)
	assert.Equal(t, domain.TicketStatusInProgress, payload.NewStatus)
}

func TestReopenForFollowUpAfterWindow(t *testing.T) {
	svc, tickets, _ := newLifecycle()
	ticket := createTicket(t, svc, 10)
	_, err := svc.Claim(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)

	stored, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	old := time.Now().Add(-GraceWindow - time.Hour)
	stored.ClosedAt = &old
	require.NoError(t, tickets.Update(context.Background(), stored))

	_, err = svc.ReopenForFollowUp(context.Background(), ticket.ID, 10)
	assert.True(t, util.HasCode(err, util.CodeIllegalTransition))
}

func TestReopenByOperatorIgnoresWindow(t *testing.T) {
	svc, tickets, _ := newLifecycle()
	ticket := createTicket(t, svc, 10)
	_, err := svc.Claim(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), ticket.ID, 2001)
	require.NoError(t, err)

	stored, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	old := time.Now().Add(-30 * 24 * time.Hour)
	stored.ClosedAt = &old
	require.NoError(t, tickets.Update(context.Background(), stored))

	reopened, err := svc.ReopenByOperator(context.Background(), ticket.ID, 2002)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, reopened.Status)
	require.NotNil(t, reopened.AssignedOperatorID)
	assert.Equal(t, int64(2002), *reopened.AssignedOperatorID)
}
