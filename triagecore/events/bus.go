// Package events provides an in-memory event bus for pipeline lifecycle
// notifications.
//
// Events are fire-and-forget with fan-out to all subscribers. Subscriber
// errors are logged and do not affect other subscribers or the publisher.
// Intended consumers: progress display in the CLI, telemetry, tests.
package events

import (
	"context"
	"sync"

	"github.com/sonukumar047/email-assistant/triagecore/logging"
)

// Handler processes a published event.
type Handler func(ctx context.Context, event Event) error

// Bus is a thread-safe in-memory event bus for single-process deployments.
//
// Usage:
//
//	bus := events.NewBus(logger)
//	bus.Subscribe(events.TypeStageCompleted, progressHandler)
//	bus.Publish(ctx, &events.StageCompleted{...})
type Bus struct {
	subscribers map[string][]Handler
	logger      logging.Logger
	mu          sync.RWMutex
}

// NewBus creates a new Bus.
func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string][]Handler),
		logger:      logger.Bind("component", "events"),
	}
}

// Subscribe registers a handler for an event type. Multiple handlers per type
// are allowed; all receive every matching event.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscriberCount returns the number of handlers registered for an event type.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// Publish delivers an event to all subscribers concurrently and waits for
// them to finish. Handler errors are logged but never returned.
func (b *Bus) Publish(ctx context.Context, event Event) {
	eventType := event.Type()

	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers[eventType]))
	copy(handlers, b.subscribers[eventType])
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i, handler := range handlers {
		wg.Add(1)
		go func(idx int, h Handler) {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				b.logger.Warn("event_handler_failed",
					"event", eventType,
					"subscriber", idx,
					"error", err.Error(),
				)
			}
		}(i, handler)
	}
	wg.Wait()
}
