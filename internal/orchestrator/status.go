package orchestrator

import (
	"sync"

	"go.uber.org/zap"
)

// StatusSubscriber receives fire-and-forget status broadcasts.
type StatusSubscriber func(StatusUpdate)

// statusBroadcaster fans one update out to zero or more subscribers. A panic
// in a subscriber is recovered and logged; it must never abort the step that
// emitted the update.
type statusBroadcaster struct {
	mu     sync.Mutex
	subs   []StatusSubscriber
	logger *zap.Logger
}

func newStatusBroadcaster(logger *zap.Logger) *statusBroadcaster {
	return &statusBroadcaster{logger: logger}
}

func (b *statusBroadcaster) subscribe(sub StatusSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)
}

func (b *statusBroadcaster) emit(update StatusUpdate) {
	b.mu.Lock()
	subs := append([]StatusSubscriber(nil), b.subs...)
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, update)
	}
}

func (b *statusBroadcaster) deliver(sub StatusSubscriber, update StatusUpdate) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("status subscriber panicked",
				zap.String("agent_id", update.AgentID),
				zap.Any("panic", r))
		}
	}()
	sub(update)
}
