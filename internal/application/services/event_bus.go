package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"go.opentelemetry.io/otel/attribute"
)

type subscription struct {
	id      uint64
	handler ports.EventHandler
}

// EventBus is the in-process publish/subscribe hub. Publish is synchronous:
// handlers run one after another in subscription order, and one failing
// handler does not stop the rest.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]subscription
	global   []subscription
	nextID   uint64
}

var _ ports.EventPublisher = (*EventBus)(nil)

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[events.EventType][]subscription)}
}

// Subscribe registers a handler for one event type and returns its unsubscribe func.
func (eb *EventBus) Subscribe(eventType events.EventType, handler ports.EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		eb.handlers[eventType] = without(eb.handlers[eventType], id)
	}
}

// SubscribeAll registers a handler that receives every event.
func (eb *EventBus) SubscribeAll(handler ports.EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.global = append(eb.global, subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		eb.global = without(eb.global, id)
	}
}

// Publish runs every handler for the event. Handler errors and panics are
// collected and returned joined.
func (eb *EventBus) Publish(ctx context.Context, event *events.Event) error {
	subs := eb.subscribers(event.Type)
	if len(subs) == 0 {
		return nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventID:   event.ID,
		EventType: event.Type.String(),
	})
	sc := logger.StartSpan(ctx, "event.publish")
	defer sc.End()
	sc.Span().SetAttributes(
		attribute.String("event.type", event.Type.String()),
		attribute.String("event.id", event.ID),
		attribute.Int("event.handlers", len(subs)),
	)
	ctx = sc.Context()

	var errs []error
	for i, sub := range subs {
		if err := eb.invoke(ctx, i, sub, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		err := fmt.Errorf("EventBus handler error for %s: %w", event.Type, errors.Join(errs...))
		sc.RecordError(err)
		return err
	}
	return nil
}

func (eb *EventBus) invoke(ctx context.Context, index int, sub subscription, event *events.Event) (err error) {
	hc := logger.StartSpan(ctx, "event.handle")
	defer hc.End()
	hc.Span().SetAttributes(attribute.Int("handler.index", index))

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler %d panicked: %v", index, p)
			slog.ErrorContext(ctx, "event handler panic", "panic", p, "stack", string(debug.Stack()))
		}
		hc.RecordError(err)
	}()
	return sub.handler(hc.Context(), event)
}

// PublishAsync publishes in a goroutine, detached from the caller's context.
func (eb *EventBus) PublishAsync(event *events.Event) {
	go func() {
		ctx := context.Background()
		if err := eb.Publish(ctx, event); err != nil {
			slog.ErrorContext(ctx, "async publish failed", "event_type", event.Type, "event_id", event.ID, "error", err)
		}
	}()
}

// Clear removes all handlers (useful for testing)
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers = make(map[events.EventType][]subscription)
	eb.global = nil
}

// subscribers merges type-specific and global handlers in subscription order.
func (eb *EventBus) subscribers(eventType events.EventType) []subscription {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	subs := make([]subscription, 0, len(eb.handlers[eventType])+len(eb.global))
	subs = append(subs, eb.handlers[eventType]...)
	subs = append(subs, eb.global...)
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	return subs
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
