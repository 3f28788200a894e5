package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
)

// StreamListener mirrors every event envelope onto an external stream,
// keyed by subject id so a subject's events stay ordered within a partition.
// In sync dispatch it runs on the request goroutine, so each write is bounded
// by timeout.
type StreamListener struct {
	sink    ports.StreamPublisher
	timeout time.Duration
}

func NewStreamListener(sink ports.StreamPublisher, timeout time.Duration) *StreamListener {
	return &StreamListener{sink: sink, timeout: timeout}
}

func (l *StreamListener) Register(bus ports.EventPublisher) func() {
	return bus.SubscribeAll(l.HandleEvent)
}

func (l *StreamListener) HandleEvent(ctx context.Context, ev *events.Event) error {
	raw, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := ev.SubjectID
	if key == "" {
		key = ev.ID
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	if err := l.sink.PublishEvent(ctx, key, raw); err != nil {
		return fmt.Errorf("stream %s: %w", ev.Type, err)
	}
	return nil
}
