package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/pkg/constants"
)

// Dispatcher routes events produced by state-change services either straight
// to the bus after commit (sync) or into the outbox inside the transaction.
type Dispatcher struct {
	mode   string
	bus    ports.EventPublisher
	outbox *OutboxService
	logger *slog.Logger
}

var _ ports.EventDispatcher = (*Dispatcher)(nil)

func NewDispatcher(mode string, bus ports.EventPublisher, outbox *OutboxService, logger *slog.Logger) *Dispatcher {
	if mode != constants.DispatchModeOutbox {
		mode = constants.DispatchModeSync
	}
	return &Dispatcher{mode: mode, bus: bus, outbox: outbox, logger: logger}
}

func (d *Dispatcher) Mode() string { return d.mode }

func (d *Dispatcher) outboxMode() bool {
	return d.mode == constants.DispatchModeOutbox && d.outbox != nil
}

// InTx enqueues the events in outbox mode. In sync mode it does nothing.
func (d *Dispatcher) InTx(ctx context.Context, evs ...*events.Event) error {
	if !d.outboxMode() {
		return nil
	}
	for _, ev := range evs {
		if err := d.outbox.EnqueueEvent(ctx, ev); err != nil {
			return fmt.Errorf("enqueue %s: %w", ev.Type, err)
		}
	}
	return nil
}

// Committed publishes the events in sync mode. Listener failures are logged,
// the caller's operation already succeeded.
func (d *Dispatcher) Committed(ctx context.Context, evs ...*events.Event) {
	if d.outboxMode() {
		return
	}
	for _, ev := range evs {
		if err := d.bus.Publish(ctx, ev); err != nil {
			d.logger.ErrorContext(ctx, "event listeners failed",
				"event_type", ev.Type, "event_id", ev.ID, "error", err)
		}
	}
}

// Dispatch sends a single event outside of any caller transaction.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *events.Event) error {
	if d.outboxMode() {
		return d.outbox.EnqueueEvent(ctx, ev)
	}
	d.Committed(ctx, ev)
	return nil
}
