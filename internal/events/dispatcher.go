package events

import (
	"context"
	"sync"
)

// Handler consumes a published event.
type Handler func(context.Context, Event) error

// Dispatcher fans ticket and pipeline events out to subscribed handlers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler Handler)
}

// memoryDispatcher delivers events synchronously, in subscription order.
// Delivery is best-effort: a failing handler neither blocks the remaining
// handlers nor surfaces to the publisher.
type memoryDispatcher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
}

// NewInMemoryDispatcher builds the process-local dispatcher.
func NewInMemoryDispatcher() Dispatcher {
	return &memoryDispatcher{subscribers: make(map[EventType][]Handler)}
}

func (d *memoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.subscribers[event.Type]...)
	d.mu.RUnlock()

	for _, handle := range handlers {
		_ = handle(ctx, event)
	}
	return nil
}

func (d *memoryDispatcher) Subscribe(eventType EventType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[eventType] = append(d.subscribers[eventType], handler)
}
