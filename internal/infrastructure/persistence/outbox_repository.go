package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

// Outbox statuses
const (
	OutboxStatusPending   = "pending"
	OutboxStatusProcessed = "processed"
	OutboxStatusFailed    = "failed"
)

// OutboxRepository stores serialized events until the outbox worker publishes them.
type OutboxRepository struct {
	base
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{base{db: db}}
}

// Enqueue inserts a pending event. Called inside the caller's transaction so
// the event only exists if the state change commits.
func (r *OutboxRepository) Enqueue(ctx context.Context, id, eventType string, payload []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_type, payload, status, retry_count, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`, constants.TableOutboxEvent)

	if _, err := r.exec(ctx).ExecContext(ctx, query, id, eventType, payload, OutboxStatusPending, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// GetPendingEvents returns pending events oldest first.
func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, event_type, payload, retry_count
		FROM %s
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?`, constants.TableOutboxEvent)

	rows, err := r.exec(ctx).QueryContext(ctx, query, OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var out []models.OutboxEvent
	for rows.Next() {
		e := models.OutboxEvent{Status: OutboxStatusPending}
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.RetryCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClaimEvent locks a pending row inside the ctx transaction. It returns false
// when another worker holds it or it is no longer pending.
func (r *OutboxRepository) ClaimEvent(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE id = ? AND status = ?
		FOR UPDATE SKIP LOCKED`, constants.TableOutboxEvent)

	var claimed string
	err := r.exec(ctx).QueryRowContext(ctx, query, id, OutboxStatusPending).Scan(&claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, processed_at = ? WHERE id = ?`, constants.TableOutboxEvent)
	_, err := r.exec(ctx).ExecContext(ctx, query, OutboxStatusProcessed, time.Now().UTC(), id)
	return err
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id, errMessage string) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, last_error = ? WHERE id = ?`, constants.TableOutboxEvent)
	_, err := r.exec(ctx).ExecContext(ctx, query, OutboxStatusFailed, errMessage, id)
	return err
}

// IncrementRetry records a failed publish and leaves the row pending.
func (r *OutboxRepository) IncrementRetry(ctx context.Context, id string, newCount int, errMessage string) error {
	query := fmt.Sprintf(`UPDATE %s SET retry_count = ?, last_error = ? WHERE id = ?`, constants.TableOutboxEvent)
	_, err := r.exec(ctx).ExecContext(ctx, query, newCount, errMessage, id)
	return err
}

// CleanupProcessed deletes processed events older than cutoff.
func (r *OutboxRepository) CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE status = ? AND processed_at < ?`, constants.TableOutboxEvent)
	return rowsAffected(r.exec(ctx).ExecContext(ctx, query, OutboxStatusProcessed, cutoff))
}
