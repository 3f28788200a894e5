package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskEvent(t *testing.T, typ events.EventType, actor *auth.UserSession, task map[string]any) *events.Event {
	t.Helper()
	ev, err := events.New(typ, actor, "task", task["id"].(string), map[string]any{events.KeyTask: task})
	require.NoError(t, err)
	return ev
}

func sampleTask() map[string]any {
	return map[string]any{
		"id":          "t1",
		"title":       "Write report",
		"status":      "todo",
		"priority":    "high",
		"assignee_id": bob.ID,
		"creator_id":  alice.ID,
	}
}

func TestEventBus_PublishRunsHandlersInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()
	var order []string

	bus.Subscribe(events.TaskCreated, func(ctx context.Context, ev *events.Event) error {
		order = append(order, "typed-1")
		return nil
	})
	bus.SubscribeAll(func(ctx context.Context, ev *events.Event) error {
		order = append(order, "global")
		return nil
	})
	bus.Subscribe(events.TaskCreated, func(ctx context.Context, ev *events.Event) error {
		order = append(order, "typed-2")
		return nil
	})
	bus.Subscribe(events.DealWon, func(ctx context.Context, ev *events.Event) error {
		order = append(order, "other")
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), taskEvent(t, events.TaskCreated, alice, sampleTask())))
	assert.Equal(t, []string{"typed-1", "global", "typed-2"}, order)
}

func TestEventBus_FailuresDoNotStopLaterHandlers(t *testing.T) {
	bus := NewEventBus()
	ran := false

	bus.Subscribe(events.TaskCreated, func(ctx context.Context, ev *events.Event) error {
		return errors.New("db unavailable")
	})
	bus.Subscribe(events.TaskCreated, func(ctx context.Context, ev *events.Event) error {
		panic("boom")
	})
	bus.Subscribe(events.TaskCreated, func(ctx context.Context, ev *events.Event) error {
		ran = true
		return nil
	})

	err := bus.Publish(context.Background(), taskEvent(t, events.TaskCreated, alice, sampleTask()))
	require.Error(t, err)
	assert.True(t, ran)
	assert.Contains(t, err.Error(), "db unavailable")
	assert.Contains(t, err.Error(), "panicked: boom")
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	unsubscribe := bus.Subscribe(events.TaskCreated, func(ctx context.Context, ev *events.Event) error {
		calls++
		return nil
	})
	other := bus.SubscribeAll(func(ctx context.Context, ev *events.Event) error {
		calls++
		return nil
	})

	ev := taskEvent(t, events.TaskCreated, alice, sampleTask())
	require.NoError(t, bus.Publish(context.Background(), ev))
	assert.Equal(t, 2, calls)

	unsubscribe()
	other()
	require.NoError(t, bus.Publish(context.Background(), ev))
	assert.Equal(t, 2, calls)
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus()
	done := make(chan string, 1)
	bus.Subscribe(events.TaskCreated, func(ctx context.Context, ev *events.Event) error {
		done <- ev.Str("task", "title")
		return nil
	})

	bus.PublishAsync(taskEvent(t, events.TaskCreated, alice, sampleTask()))

	select {
	case title := <-done:
		assert.Equal(t, "Write report", title)
	case <-time.After(2 * time.Second):
		t.Fatal("async handler did not run")
	}
}

func TestEventBus_Clear(t *testing.T) {
	bus := NewEventBus()
	called := false
	bus.SubscribeAll(func(ctx context.Context, ev *events.Event) error {
		called = true
		return nil
	})
	bus.Clear()

	require.NoError(t, bus.Publish(context.Background(), taskEvent(t, events.TaskCreated, alice, sampleTask())))
	assert.False(t, called)
}
