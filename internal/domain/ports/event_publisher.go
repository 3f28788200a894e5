package ports

import (
	"context"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
)

// EventHandler handles one event.
type EventHandler func(ctx context.Context, event *events.Event) error

// EventPublisher is the in-process event bus.
type EventPublisher interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType events.EventType, handler EventHandler) func()

	// SubscribeAll registers a handler that sees every event.
	SubscribeAll(handler EventHandler) func()

	// Publish dispatches an event to all registered handlers.
	// Every handler runs; their errors are joined.
	Publish(ctx context.Context, event *events.Event) error

	// PublishAsync dispatches in the background.
	PublishAsync(event *events.Event)
}

// EventDispatcher is what event producers call. Depending on the configured
// mode events are published in process after commit, or written to the outbox
// inside the producing transaction.
type EventDispatcher interface {
	// InTx is called inside the producing transaction.
	InTx(ctx context.Context, evs ...*events.Event) error
	// Committed is called once that transaction has committed. It never fails
	// the caller; listener errors are logged.
	Committed(ctx context.Context, evs ...*events.Event)
	// Dispatch is for producers without a transaction of their own.
	Dispatch(ctx context.Context, ev *events.Event) error
}
