package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

// StatsService serves the dashboard aggregate from cache.
type StatsService struct {
	repo   StatsStore
	cache  ports.Cache
	now    func() time.Time
	logger *slog.Logger
}

func NewStatsService(repo StatsStore, cache ports.Cache, logger *slog.Logger) *StatsService {
	return &StatsService{repo: repo, cache: cache, now: func() time.Time { return time.Now().UTC() }, logger: logger}
}

func (s *StatsService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	raw, err := s.cache.Get(ctx, constants.CacheKeyDashboardStats)
	if err == nil {
		var stats models.DashboardStats
		if jsonErr := json.Unmarshal(raw, &stats); jsonErr == nil {
			return &stats, nil
		}
	} else if !errors.Is(err, ports.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "dashboard cache read failed", "error", err)
	}

	stats, err := s.repo.Dashboard(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, constants.CacheKeyDashboardStats, raw, constants.DashboardStatsTTL); err != nil {
			s.logger.WarnContext(ctx, "dashboard cache write failed", "error", err)
		}
	}
	return stats, nil
}
