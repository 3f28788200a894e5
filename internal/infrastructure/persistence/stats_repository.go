package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

// StatsRepository runs the aggregate queries behind the dashboard.
type StatsRepository struct {
	base
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{base{db: db}}
}

func (r *StatsRepository) Dashboard(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{
		TasksByStatus: map[string]int{},
		DealsByStage:  map[string]int{},
		GeneratedAt:   now.UTC(),
	}

	if err := r.groupCount(ctx, fmt.Sprintf("SELECT status, COUNT(*) FROM %s GROUP BY status", constants.TableTask), stats.TasksByStatus); err != nil {
		return nil, err
	}
	for status, n := range stats.TasksByStatus {
		if status != string(constants.TaskStatusDone) {
			stats.OpenTasks += n
		}
	}

	overdue := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE due_at < ? AND status <> ?", constants.TableTask)
	if err := r.exec(ctx).QueryRowContext(ctx, overdue, now, string(constants.TaskStatusDone)).Scan(&stats.OverdueTasks); err != nil {
		return nil, fmt.Errorf("failed to count overdue tasks: %w", err)
	}

	if err := r.groupCount(ctx, fmt.Sprintf("SELECT stage, COUNT(*) FROM %s GROUP BY stage", constants.TableDeal), stats.DealsByStage); err != nil {
		return nil, err
	}

	values := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(CASE WHEN stage NOT IN (?, ?) THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN stage = ? THEN amount ELSE 0 END), 0)
		FROM %s`, constants.TableDeal)
	if err := r.exec(ctx).QueryRowContext(ctx, values,
		string(constants.DealStageWon), string(constants.DealStageLost), string(constants.DealStageWon),
	).Scan(&stats.PipelineValue, &stats.WonValue); err != nil {
		return nil, fmt.Errorf("failed to sum deal values: %w", err)
	}

	clients := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE deleted_at IS NULL", constants.TableClient)
	if err := r.exec(ctx).QueryRowContext(ctx, clients).Scan(&stats.ActiveClients); err != nil {
		return nil, fmt.Errorf("failed to count clients: %w", err)
	}

	return stats, nil
}

func (r *StatsRepository) groupCount(ctx context.Context, query string, into map[string]int) error {
	rows, err := r.exec(ctx).QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run stats query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
