package events

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/alimusa80/Multi-Live-Streaming-Plugin-sub000/internal/utils"
)

// Handler receives published events.
type Handler func(Event)

// Bus delivers events to subscribers in publish order on its own goroutine,
// so a handler may call back into the client without deadlocking the publisher.
type Bus struct {
	logger   *zap.Logger
	dispatch *utils.OpsQueue

	handlersLock  sync.RWMutex
	handlers      map[int64]Handler
	nextHandlerID int64
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("event-bus")
	b := &Bus{
		logger:   logger,
		dispatch: utils.NewOpsQueue(logger, "event-bus"),
		handlers: make(map[int64]Handler),
	}
	b.dispatch.Start()
	return b
}

// Subscribe registers a handler and returns the function that removes it.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	handlerID := atomic.AddInt64(&b.nextHandlerID, 1)

	b.handlersLock.Lock()
	b.handlers[handlerID] = handler
	b.handlersLock.Unlock()

	return func() {
		b.handlersLock.Lock()
		delete(b.handlers, handlerID)
		b.handlersLock.Unlock()
	}
}

// Publish never blocks. Events published after Close are dropped.
func (b *Bus) Publish(ev Event) {
	if !b.dispatch.Enqueue(func() { b.deliver(ev) }) {
		b.logger.Debug("bus closed, dropping event", zap.String("event", ev.Name()))
	}
}

// Close stops accepting events; already published ones are still delivered.
func (b *Bus) Close() {
	b.dispatch.Stop()
}

// Done is closed after the last event has been delivered following Close.
func (b *Bus) Done() <-chan struct{} {
	return b.dispatch.Done()
}

func (b *Bus) deliver(ev Event) {
	b.handlersLock.RLock()
	ids := make([]int64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.handlersLock.RUnlock()

	// call handlers outside the lock
	for _, h := range handlers {
		h(ev)
	}
}
