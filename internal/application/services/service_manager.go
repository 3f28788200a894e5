package services

import (
	"database/sql"
	"log/slog"

	"github.com/nexuscrm/taskdesk/internal/config"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/persistence"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
)

// Adapters are the infrastructure pieces the services run on. Stream may be nil.
type Adapters struct {
	DB     *sql.DB
	Cache  ports.Cache
	Mailer ports.Mailer
	Stream ports.StreamPublisher
}

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	cfg    *config.Config
	logger *slog.Logger

	// Repositories
	Users       *persistence.UserRepository
	Automations *persistence.AutomationRepository

	// Core services
	TxManager     *persistence.TransactionManager
	EventBus      *EventBus
	Outbox        *OutboxService
	Dispatcher    *Dispatcher
	Tokens        *auth.TokenManager
	Auth          *AuthService
	Tasks         *TaskService
	Deals         *DealService
	Clients       *ClientService
	Activity      *ActivityService
	Notifications *NotificationService
	Webhooks      *WebhookService
	Delivery      *WebhookDeliveryWorker
	Automation    *AutomationService
	Stats         *StatsService
	Invalidator   *CacheInvalidator
	Stream        *StreamListener
	Scheduler     *SchedulerService
}

// NewServiceManager wires the services and subscribes the listeners. The
// subscription order is the order listeners run in for every event.
func NewServiceManager(cfg *config.Config, a Adapters, logger *slog.Logger) (*ServiceManager, error) {
	sm := &ServiceManager{cfg: cfg, logger: logger}

	sm.Users = persistence.NewUserRepository(a.DB)
	sm.Automations = persistence.NewAutomationRepository(a.DB)
	webhooks := persistence.NewWebhookRepository(a.DB)
	webhookLogs := persistence.NewWebhookLogRepository(a.DB)

	sm.TxManager = persistence.NewTransactionManager(a.DB)
	sm.EventBus = NewEventBus()
	sm.Outbox = NewOutboxService(persistence.NewOutboxRepository(a.DB), sm.EventBus, sm.TxManager, logger)
	sm.Dispatcher = NewDispatcher(cfg.EventDispatchMode, sm.EventBus, sm.Outbox, logger)

	sm.Tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	sm.Auth = NewAuthService(sm.Users, persistence.NewSessionRepository(a.DB), sm.Tokens, sm.TxManager, sm.Dispatcher, logger)
	sm.Tasks = NewTaskService(persistence.NewTaskRepository(a.DB), sm.Users, sm.TxManager, sm.Dispatcher, logger)
	sm.Deals = NewDealService(persistence.NewDealRepository(a.DB), sm.TxManager, sm.Dispatcher, logger)
	sm.Clients = NewClientService(persistence.NewClientRepository(a.DB), sm.TxManager, sm.Dispatcher, logger)

	sm.Activity = NewActivityService(persistence.NewActivityRepository(a.DB), a.Cache, logger)
	sm.Notifications = NewNotificationService(persistence.NewNotificationRepository(a.DB), sm.Users, a.Cache, a.Mailer, cfg.NotifyEmailEnabled, logger)
	sm.Delivery = NewWebhookDeliveryWorker(webhookLogs, webhooks, sm.Dispatcher, cfg.Webhook, logger)
	sm.Webhooks = NewWebhookService(webhooks, webhookLogs, sm.Delivery, logger)
	sm.Automation = NewAutomationService(sm.Automations, sm.Tasks, sm.Notifications, logger)
	sm.Stats = NewStatsService(persistence.NewStatsRepository(a.DB), a.Cache, logger)
	sm.Invalidator = NewCacheInvalidator(a.Cache, logger)

	sm.Activity.Register(sm.EventBus)
	sm.Notifications.Register(sm.EventBus)
	sm.Invalidator.Register(sm.EventBus)
	sm.Webhooks.Register(sm.EventBus)
	sm.Automation.Register(sm.EventBus)
	if a.Stream != nil {
		sm.Stream = NewStreamListener(a.Stream, cfg.KafkaWriteTimeout)
		sm.Stream.Register(sm.EventBus)
	}

	sm.Scheduler = NewSchedulerService(sm.Tasks, sm.Outbox, webhookLogs, sm.Auth, logger)
	if err := sm.Scheduler.Register(); err != nil {
		return nil, err
	}

	logger.Info("services wired", "dispatch_mode", sm.Dispatcher.Mode(), "stream", a.Stream != nil)
	return sm, nil
}

// StartWorkers starts the background workers. The outbox worker only runs in
// outbox mode.
func (sm *ServiceManager) StartWorkers() {
	if sm.Dispatcher.Mode() == constants.DispatchModeOutbox {
		sm.Outbox.StartWorker(sm.cfg.OutboxPollInterval)
	}
	sm.Delivery.Start()
	sm.Scheduler.Start()
}

// StopWorkers stops the background workers gracefully.
func (sm *ServiceManager) StopWorkers() {
	sm.Scheduler.Stop()
	sm.Delivery.Stop()
	if sm.Dispatcher.Mode() == constants.DispatchModeOutbox {
		sm.Outbox.StopWorker()
	}
}
