package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/gateway"
)

const (
	defaultPumpWorkers    = 8
	defaultPumpQueueDepth = 64
)

// UpdatePump spreads inbound updates across a fixed set of worker
// goroutines so one user's slow handler does not stall everyone else.
// Updates from the same user always land on the same worker, which keeps
// that user's updates in arrival order.
type UpdatePump struct {
	handle func(context.Context, gateway.Update)
	queues []chan gateway.Update
	wg     sync.WaitGroup
	logger *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewUpdatePump constructs a pump with the given worker count and per-worker
// queue depth. Non-positive values fall back to the defaults.
func NewUpdatePump(workers, depth int, handle func(context.Context, gateway.Update), logger *zap.Logger) *UpdatePump {
	if workers <= 0 {
		workers = defaultPumpWorkers
	}
	if depth <= 0 {
		depth = defaultPumpQueueDepth
	}
	queues := make([]chan gateway.Update, workers)
	for i := range queues {
		queues[i] = make(chan gateway.Update, depth)
	}
	return &UpdatePump{handle: handle, queues: queues, logger: logger}
}

// Start launches the workers. They run until Stop closes the queues; ctx is
// passed through to every handler invocation.
func (p *UpdatePump) Start(ctx context.Context) {
	for i := range p.queues {
		queue := p.queues[i]
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for upd := range queue {
				p.handle(ctx, upd)
			}
		}()
	}
}

// Submit enqueues an update onto its user's worker. A full queue blocks the
// caller: backpressure on the poll loop beats dropping updates. Submissions
// racing Stop are discarded.
func (p *UpdatePump) Submit(upd gateway.Update) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.logger.Warn("update dropped during shutdown",
			zap.String("kind", string(upd.Kind)),
			zap.Int64("user_id", upd.UserID))
		return
	}
	p.queues[p.shard(upd)] <- upd
}

// Stop closes the queues and waits for the workers to drain them.
func (p *UpdatePump) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	for _, queue := range p.queues {
		close(queue)
	}
	p.wg.Wait()
}

// shard picks the worker for an update. Keyed by user so a user's updates
// serialize; support-channel messages without a user key fall back to chat.
func (p *UpdatePump) shard(upd gateway.Update) int {
	key := upd.UserID
	if key == 0 {
		key = upd.ChatID
	}
	if key < 0 {
		key = -key
	}
	return int(key % int64(len(p.queues)))
}
