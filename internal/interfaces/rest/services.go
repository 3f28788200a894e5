package rest

import (
	"context"
	"time"

	"github.com/nexuscrm/taskdesk/internal/application/services"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

// The handlers depend on these slices of the service layer so they can be
// exercised with mocks.

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, userID string) (*models.User, error)
	Register(ctx context.Context, actor *auth.UserSession, in services.RegisterInput) (*models.User, error)
}

type TaskServiceInterface interface {
	Create(ctx context.Context, actor *auth.UserSession, in services.TaskInput) (*models.Task, error)
	Update(ctx context.Context, actor *auth.UserSession, id string, patch services.TaskPatch) (*models.Task, error)
	Assign(ctx context.Context, actor *auth.UserSession, id, assigneeID string) (*models.Task, error)
	Complete(ctx context.Context, actor *auth.UserSession, id string) (*models.Task, error)
	Delete(ctx context.Context, actor *auth.UserSession, id string) error
}

type DealServiceInterface interface {
	Create(ctx context.Context, actor *auth.UserSession, in services.DealInput) (*models.Deal, error)
	ChangeStage(ctx context.Context, actor *auth.UserSession, id string, stage constants.DealStage) (*models.Deal, error)
	Win(ctx context.Context, actor *auth.UserSession, id string) (*models.Deal, error)
	Lose(ctx context.Context, actor *auth.UserSession, id, reason string) (*models.Deal, error)
}

type ClientServiceInterface interface {
	Create(ctx context.Context, actor *auth.UserSession, in services.ClientInput) (*models.Client, error)
	Update(ctx context.Context, actor *auth.UserSession, id string, patch services.ClientPatch) (*models.Client, error)
	Delete(ctx context.Context, actor *auth.UserSession, id string) error
}

type ActivityServiceInterface interface {
	SubjectFeed(ctx context.Context, subjectType, subjectID string, before *time.Time, limit int) ([]models.ActivityLog, error)
	ActorFeed(ctx context.Context, actorID string, before *time.Time, limit int) ([]models.ActivityLog, error)
	RecentFeed(ctx context.Context, before *time.Time, limit int) ([]models.ActivityLog, error)
}

type NotificationServiceInterface interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type WebhookServiceInterface interface {
	Create(ctx context.Context, user *auth.UserSession, in services.WebhookInput) (*models.Webhook, error)
	List(ctx context.Context, user *auth.UserSession) ([]models.Webhook, error)
	Get(ctx context.Context, user *auth.UserSession, id string) (*models.Webhook, error)
	Update(ctx context.Context, user *auth.UserSession, id string, patch services.WebhookPatch) (*models.Webhook, error)
	Delete(ctx context.Context, user *auth.UserSession, id string) error
	Logs(ctx context.Context, user *auth.UserSession, id string, limit int) ([]models.WebhookLog, error)
	SendTest(ctx context.Context, user *auth.UserSession, id string) (*services.TestDelivery, error)
}

type AutomationServiceInterface interface {
	List(ctx context.Context) ([]models.TaskAutomation, error)
	Get(ctx context.Context, id string) (*models.TaskAutomation, error)
	Create(ctx context.Context, actor *auth.UserSession, in services.AutomationInput) (*models.TaskAutomation, error)
	Update(ctx context.Context, id string, in services.AutomationInput) (*models.TaskAutomation, error)
	Delete(ctx context.Context, id string) error
}

type StatsServiceInterface interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}
