package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

const activityColumns = "id, event_id, event_type, subject_type, subject_id, actor_id, description, metadata, created_at"

// ActivityQuery filters a feed. Zero values mean "no filter".
type ActivityQuery struct {
	SubjectType string
	SubjectID   string
	ActorID     string
	Before      *time.Time
	Limit       int
}

type ActivityRepository struct {
	base
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{base{db: db}}
}

// Insert writes an activity row. Rows are unique on event_id; a replayed event
// is ignored and reported as inserted == false.
func (r *ActivityRepository) Insert(ctx context.Context, a *models.ActivityLog) (bool, error) {
	meta, err := marshalJSON(a.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal activity metadata: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT IGNORE INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableActivityLog, activityColumns)

	n, err := rowsAffected(r.exec(ctx).ExecContext(ctx, query,
		a.ID, a.EventID, a.EventType, a.SubjectType, a.SubjectID,
		models.NewNullString(a.ActorID), a.Description, meta, a.CreatedAt,
	))
	if err != nil {
		return false, fmt.Errorf("failed to insert activity: %w", err)
	}
	return n > 0, nil
}

// List returns activity newest first.
func (r *ActivityRepository) List(ctx context.Context, q ActivityQuery) ([]models.ActivityLog, error) {
	var where []string
	var args []any
	if q.SubjectType != "" {
		where = append(where, "subject_type = ?", "subject_id = ?")
		args = append(args, q.SubjectType, q.SubjectID)
	}
	if q.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, q.ActorID)
	}
	if q.Before != nil {
		where = append(where, "created_at < ?")
		args = append(args, *q.Before)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", activityColumns, constants.TableActivityLog)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	out := []models.ActivityLog{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanActivity(s scanner) (*models.ActivityLog, error) {
	var a models.ActivityLog
	var actor sql.NullString
	var meta []byte
	if err := s.Scan(&a.ID, &a.EventID, &a.EventType, &a.SubjectType, &a.SubjectID,
		&actor, &a.Description, &meta, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ActorID = models.NullStringToPtr(actor)
	m, err := unmarshalJSON[map[string]any](meta)
	if err != nil {
		return nil, fmt.Errorf("activity %s: bad metadata: %w", a.ID, err)
	}
	a.Metadata = m
	return &a, nil
}
