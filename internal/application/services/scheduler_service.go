package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nexuscrm/taskdesk/internal/logger"
)

// Schedules and retention windows for the periodic jobs.
const (
	OverdueScanSchedule    = "@every 1m"
	OutboxCleanupSchedule  = "@hourly"
	WebhookPurgeSchedule   = "@daily"
	SessionPurgeSchedule   = "@daily"
	OutboxRetention        = 7 * 24 * time.Hour
	WebhookLogRetention    = 30 * 24 * time.Hour
	overdueScanBatch       = 200
	scheduledJobMaxRuntime = 5 * time.Minute
)

// SchedulerService runs the periodic maintenance jobs on a cron.
type SchedulerService struct {
	cron    *cron.Cron
	tasks   *TaskService
	outbox  *OutboxService
	logs    WebhookLogStore
	auth    *AuthService
	logger  *slog.Logger
	mu      sync.Mutex
	running bool
}

func NewSchedulerService(tasks *TaskService, outbox *OutboxService, logs WebhookLogStore, authSvc *AuthService, logger *slog.Logger) *SchedulerService {
	return &SchedulerService{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		tasks:  tasks,
		outbox: outbox,
		logs:   logs,
		auth:   authSvc,
		logger: logger,
	}
}

// Register adds the jobs to the cron. It is separate from Start so tests can
// inspect the entries.
func (s *SchedulerService) Register() error {
	jobs := []struct {
		spec string
		name string
		fn   func(ctx context.Context)
	}{
		{OverdueScanSchedule, "overdue_scan", s.ScanOverdue},
		{OutboxCleanupSchedule, "outbox_cleanup", s.CleanupOutbox},
		{WebhookPurgeSchedule, "webhook_log_purge", s.PurgeWebhookLogs},
		{SessionPurgeSchedule, "session_purge", s.PurgeSessions},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.fn)); err != nil {
			return err
		}
	}
	return nil
}

// Entries exposes the registered cron entries.
func (s *SchedulerService) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *SchedulerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the cron and waits for running jobs.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// wrap gives every run a timeout, a component tag and panic recovery.
func (s *SchedulerService) wrap(name string, fn func(ctx context.Context)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), scheduledJobMaxRuntime)
		defer cancel()
		ctx = logger.WithComponent(ctx, "scheduler."+name)

		defer func() {
			if r := recover(); r != nil {
				s.logger.ErrorContext(ctx, "scheduled job panicked", "panic", r)
			}
		}()

		start := time.Now()
		fn(ctx)
		s.logger.DebugContext(ctx, "scheduled job finished", "duration", time.Since(start))
	}
}

// ScanOverdue flags overdue tasks and raises task.overdue for each.
func (s *SchedulerService) ScanOverdue(ctx context.Context) {
	n, err := s.tasks.FlagOverdue(ctx, overdueScanBatch)
	if err != nil {
		s.logger.ErrorContext(ctx, "overdue scan failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "flagged overdue tasks", "count", n)
	}
}

func (s *SchedulerService) CleanupOutbox(ctx context.Context) {
	n, err := s.outbox.CleanupProcessed(ctx, OutboxRetention)
	if err != nil {
		s.logger.ErrorContext(ctx, "outbox cleanup failed", "error", err)
		return
	}
	s.logger.InfoContext(ctx, "outbox cleaned", "deleted", n)
}

func (s *SchedulerService) PurgeWebhookLogs(ctx context.Context) {
	n, err := s.logs.PurgeDelivered(ctx, time.Now().UTC().Add(-WebhookLogRetention))
	if err != nil {
		s.logger.ErrorContext(ctx, "webhook log purge failed", "error", err)
		return
	}
	s.logger.InfoContext(ctx, "webhook logs purged", "deleted", n)
}

func (s *SchedulerService) PurgeSessions(ctx context.Context) {
	n, err := s.auth.PurgeExpiredSessions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "session purge failed", "error", err)
		return
	}
	s.logger.InfoContext(ctx, "expired sessions purged", "deleted", n)
}
