package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

const (
	MaxRetryAttempts = 5
	outboxBatchSize  = 100
)

// OutboxService stores events in the producing transaction and a background
// worker publishes them on the bus.
type OutboxService struct {
	repo      OutboxStore
	eventBus  ports.EventPublisher
	txManager TxRunner
	logger    *slog.Logger

	// Worker control
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewOutboxService(repo OutboxStore, eventBus ports.EventPublisher, txManager TxRunner, logger *slog.Logger) *OutboxService {
	return &OutboxService{
		repo:      repo,
		eventBus:  eventBus,
		txManager: txManager,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// EnqueueEvent writes the event to the outbox. When ctx carries a transaction
// the insert joins it.
func (s *OutboxService) EnqueueEvent(ctx context.Context, ev *events.Event) error {
	raw, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.repo.Enqueue(ctx, ev.ID, ev.Type.String(), raw); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "outbox event enqueued", "event_type", ev.Type, "event_id", ev.ID)
	return nil
}

// StartWorker polls the outbox every interval until StopWorker is called.
func (s *OutboxService) StartWorker(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		ctx := logger.WithComponent(context.Background(), "worker.outbox")
		s.logger.InfoContext(ctx, "outbox worker started", "interval", interval)

		for {
			select {
			case <-s.stopCh:
				s.logger.InfoContext(ctx, "outbox worker stopping")
				return
			case <-ticker.C:
				if err := s.ProcessOutbox(ctx); err != nil {
					s.logger.ErrorContext(ctx, "outbox worker error", "error", err)
				}
			}
		}
	}()
}

// StopWorker stops the background worker and waits for the current batch.
func (s *OutboxService) StopWorker() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// ProcessOutbox publishes one batch of pending events. Each event is claimed
// and settled in its own transaction.
func (s *OutboxService) ProcessOutbox(ctx context.Context) error {
	pending, err := s.repo.GetPendingEvents(ctx, outboxBatchSize)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		s.logger.DebugContext(ctx, "processing outbox batch", "count", len(pending))
	}

	for _, e := range pending {
		if err := s.processEventAtomic(ctx, e); err != nil {
			s.logger.ErrorContext(ctx, "failed to process outbox event", "outbox_id", e.ID, "error", err)
		}
	}
	return nil
}

func (s *OutboxService) processEventAtomic(ctx context.Context, e models.OutboxEvent) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		claimed, err := s.repo.ClaimEvent(txCtx, e.ID)
		if err != nil {
			return fmt.Errorf("failed to claim event: %w", err)
		}
		if !claimed {
			return nil // another worker has it, or it is no longer pending
		}

		ev, err := events.Decode([]byte(e.Payload))
		if err != nil {
			s.logger.ErrorContext(ctx, "outbox payload unreadable", "outbox_id", e.ID, "error", err)
			return s.repo.MarkFailed(txCtx, e.ID, fmt.Sprintf("invalid payload: %v", err))
		}

		// Listeners write in their own transactions, so they get the outer ctx.
		if err := s.eventBus.Publish(ctx, ev); err != nil {
			retries := e.RetryCount + 1
			if retries >= MaxRetryAttempts {
				s.logger.ErrorContext(ctx, "outbox event gave up",
					"outbox_id", e.ID, "event_type", e.EventType, "attempts", retries, "error", err)
				return s.repo.MarkFailed(txCtx, e.ID, fmt.Sprintf("max retries exceeded: %v", err))
			}
			s.logger.WarnContext(ctx, "outbox event publish failed",
				"outbox_id", e.ID, "event_type", e.EventType, "attempt", retries, "max", MaxRetryAttempts, "error", err)
			return s.repo.IncrementRetry(txCtx, e.ID, retries, err.Error())
		}

		return s.repo.MarkProcessed(txCtx, e.ID)
	})
}

// CleanupProcessed removes processed events older than olderThan.
func (s *OutboxService) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.CleanupProcessed(ctx, time.Now().UTC().Add(-olderThan))
}
