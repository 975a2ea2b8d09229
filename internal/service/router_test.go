package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/texts"
)

func newRouter(t *testing.T) (*UpdateRouter, *botEnv) {
	t.Helper()
	env := newBotEnv(t)
	operator := NewOperatorService(OperatorDependencies{
		Gateway:    env.gw,
		Sessions:   env.sessions,
		TicketRepo: env.tickets,
		Lifecycle:  env.lifecycle,
		Routing:    env.routing,
		Config:     config.GatewayConfig{SupportChatID: testSupportChatID, Operators: []int64{2001}},
		Logger:     zap.NewNop(),
	})
	return NewUpdateRouter(env.conversation, operator, testSupportChatID, zap.NewNop()), env
}

func TestRouteStartCommand(t *testing.T) {
	router, env := newRouter(t)

	upd := textUpdate(10, "")
	upd.Kind = gateway.UpdateCommand
	upd.Command = "start"
	router.Route(context.Background(), upd)

	msg, ok := env.gw.lastTo(10)
	require.True(t, ok)
	assert.Equal(t, texts.Welcome, msg.Text)
}

func TestRouteOpButtonsGoToOperator(t *testing.T) {
	router, env := newRouter(t)
	project := env.seedProject(t, "Acme", "ACME-2024")
	env.bindUser(t, 10, project.ID)
	ctx := context.Background()

	runTicketFlow(t, env, 10, "the weekly report is missing all of last month")
	require.NoError(t, env.conversation.HandleButton(ctx, buttonUpdate(10, "ticket:submit")))
	ticket, err := env.tickets.ActiveByUser(ctx, 10)
	require.NoError(t, err)

	upd := buttonUpdate(2001, "op:take:1")
	upd.ChatID = testSupportChatID
	router.Route(ctx, upd)

	stored, err := env.tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedOperatorID)
	assert.Equal(t, int64(2001), *stored.AssignedOperatorID)
}

func TestRouteSupportChannelTextGoesToOperator(t *testing.T) {
	router, env := newRouter(t)
	project := env.seedProject(t, "Acme", "ACME-2024")
	env.bindUser(t, 10, project.ID)
	ctx := context.Background()

	runTicketFlow(t, env, 10, "the weekly report is missing all of last month")
	require.NoError(t, env.conversation.HandleButton(ctx, buttonUpdate(10, "ticket:submit")))
	ticket, err := env.tickets.ActiveByUser(ctx, 10)
	require.NoError(t, err)
	_, err = env.lifecycle.Claim(ctx, ticket.ID, 2001)
	require.NoError(t, err)

	upd := gateway.Update{
		Kind:      gateway.UpdateText,
		UserID:    2001,
		ChatID:    testSupportChatID,
		ThreadID:  *ticket.ThreadID,
		MessageID: 900,
		Text:      "looking into it now",
	}
	router.Route(ctx, upd)

	reply, ok := env.gw.lastTo(10)
	require.True(t, ok)
	assert.Contains(t, reply.Text, "looking into it now")
}

func TestRouteErrorsDoNotPropagate(t *testing.T) {
	router, _ := newRouter(t)

	// A malformed button press must be swallowed, not panic or stall.
	assert.NotPanics(t, func() {
		router.Route(context.Background(), buttonUpdate(10, "???"))
	})
}
