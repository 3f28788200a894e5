package services

import (
	"context"
	"time"

	"github.com/nexuscrm/taskdesk/internal/infrastructure/persistence"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

// The interfaces below are the slices of the persistence layer each service
// needs. The *Repository types in persistence satisfy them.

// TxRunner runs fn inside a transaction carried by ctx.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type OutboxStore interface {
	Enqueue(ctx context.Context, id, eventType string, payload []byte) error
	GetPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	ClaimEvent(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMessage string) error
	IncrementRetry(ctx context.Context, id string, newCount int, errMessage string) error
	CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error)
}

type ActivityStore interface {
	Insert(ctx context.Context, a *models.ActivityLog) (bool, error)
	List(ctx context.Context, q persistence.ActivityQuery) ([]models.ActivityLog, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) (bool, error)
	ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

type WebhookStore interface {
	Create(ctx context.Context, w *models.Webhook) error
	Get(ctx context.Context, id string) (*models.Webhook, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Webhook, error)
	ListActive(ctx context.Context) ([]models.Webhook, error)
	Update(ctx context.Context, w *models.Webhook) error
	Delete(ctx context.Context, id string) error
	ResetFailures(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, threshold int) (int, bool, error)
}

type WebhookLogStore interface {
	InsertPending(ctx context.Context, l *models.WebhookLog) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.WebhookLog, error)
	ListByWebhook(ctx context.Context, webhookID string, limit int) ([]models.WebhookLog, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkDelivered(ctx context.Context, id string, res persistence.DeliveryResult) error
	ScheduleRetry(ctx context.Context, id string, res persistence.DeliveryResult, next time.Time) error
	MarkFailed(ctx context.Context, id string, res persistence.DeliveryResult) error
	ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error)
	PurgeDelivered(ctx context.Context, cutoff time.Time) (int64, error)
}

type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	Get(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, id string) error
	ListOverdueUnflagged(ctx context.Context, now time.Time, limit int) ([]models.Task, error)
	FlagOverdue(ctx context.Context, id string, at time.Time) (bool, error)
}

type DealStore interface {
	Create(ctx context.Context, d *models.Deal) error
	Get(ctx context.Context, id string) (*models.Deal, error)
	Update(ctx context.Context, d *models.Deal) error
}

type ClientStore interface {
	Create(ctx context.Context, c *models.Client) error
	Get(ctx context.Context, id string) (*models.Client, error)
	Update(ctx context.Context, c *models.Client) error
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	CheckUserExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

type SessionStore interface {
	Insert(ctx context.Context, s *models.Session) error
	GetByTokenID(ctx context.Context, tokenID string) (*models.Session, error)
	Revoke(ctx context.Context, tokenID string) error
	Touch(ctx context.Context, tokenID string, at time.Time) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type AutomationStore interface {
	Create(ctx context.Context, a *models.TaskAutomation) error
	Get(ctx context.Context, id string) (*models.TaskAutomation, error)
	List(ctx context.Context) ([]models.TaskAutomation, error)
	ListActiveByTrigger(ctx context.Context, trigger string) ([]models.TaskAutomation, error)
	Update(ctx context.Context, a *models.TaskAutomation) error
	Delete(ctx context.Context, id string) error
}

type StatsStore interface {
	Dashboard(ctx context.Context, now time.Time) (*models.DashboardStats, error)
}

var (
	_ OutboxStore       = (*persistence.OutboxRepository)(nil)
	_ ActivityStore     = (*persistence.ActivityRepository)(nil)
	_ NotificationStore = (*persistence.NotificationRepository)(nil)
	_ WebhookStore      = (*persistence.WebhookRepository)(nil)
	_ WebhookLogStore   = (*persistence.WebhookLogRepository)(nil)
	_ TaskStore         = (*persistence.TaskRepository)(nil)
	_ DealStore         = (*persistence.DealRepository)(nil)
	_ ClientStore       = (*persistence.ClientRepository)(nil)
	_ UserStore         = (*persistence.UserRepository)(nil)
	_ SessionStore      = (*persistence.SessionRepository)(nil)
	_ AutomationStore   = (*persistence.AutomationRepository)(nil)
	_ StatsStore        = (*persistence.StatsRepository)(nil)
	_ TxRunner          = (*persistence.TransactionManager)(nil)
)
