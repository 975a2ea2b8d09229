package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/gateway"
)

func TestPumpPerUserOrderPreserved(t *testing.T) {
	var mu sync.Mutex
	perUser := map[int64][]int64{}
	pump := NewUpdatePump(4, 16, func(_ context.Context, upd gateway.Update) {
		mu.Lock()
		perUser[upd.UserID] = append(perUser[upd.UserID], upd.MessageID)
		mu.Unlock()
	}, zap.NewNop())
	pump.Start(context.Background())

	for i := 1; i <= 20; i++ {
		for user := int64(1); user <= 5; user++ {
			pump.Submit(gateway.Update{Kind: gateway.UpdateText, UserID: user, MessageID: int64(i)})
		}
	}
	pump.Stop()

	for user := int64(1); user <= 5; user++ {
		require.Len(t, perUser[user], 20, "user %d", user)
		for i, id := range perUser[user] {
			assert.Equal(t, int64(i+1), id, "user %d position %d", user, i)
		}
	}
}

func TestPumpSlowUserDoesNotStallOthers(t *testing.T) {
	release := make(chan struct{})
	fastDone := make(chan struct{})
	pump := NewUpdatePump(4, 16, func(_ context.Context, upd gateway.Update) {
		if upd.UserID == 1 {
			<-release
			return
		}
		close(fastDone)
	}, zap.NewNop())
	pump.Start(context.Background())

	// The first user's handler hangs on I/O; the second user lands on a
	// different worker and must still be served.
	pump.Submit(gateway.Update{Kind: gateway.UpdateText, UserID: 1})
	pump.Submit(gateway.Update{Kind: gateway.UpdateText, UserID: 2})

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second user's update stalled behind the first user's handler")
	}

	close(release)
	pump.Stop()
}

func TestPumpSubmitAfterStopIsDropped(t *testing.T) {
	handled := 0
	pump := NewUpdatePump(2, 4, func(_ context.Context, upd gateway.Update) {
		handled++
	}, zap.NewNop())
	pump.Start(context.Background())
	pump.Stop()

	pump.Submit(gateway.Update{Kind: gateway.UpdateText, UserID: 1})
	assert.Zero(t, handled)
}

func TestPumpNegativeChatKey(t *testing.T) {
	done := make(chan struct{})
	pump := NewUpdatePump(3, 4, func(_ context.Context, upd gateway.Update) {
		close(done)
	}, zap.NewNop())
	pump.Start(context.Background())

	// Support-channel updates carry no user in some cases; the negative chat
	// ID must still map onto a valid worker.
	pump.Submit(gateway.Update{Kind: gateway.UpdateText, ChatID: -100777})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update with a negative chat key was never handled")
	}
	pump.Stop()
}
