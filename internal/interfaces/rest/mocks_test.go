package rest_test

import (
	"context"
	"time"

	"github.com/nexuscrm/taskdesk/internal/application/services"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/stretchr/testify/mock"
)

type MockSessions struct {
	users map[string]auth.UserSession
}

func (m *MockSessions) ValidateSession(_ context.Context, token string) (*auth.Claims, error) {
	u, ok := m.users[token]
	if !ok {
		return nil, errUnauthorized
	}
	return &auth.Claims{User: u}, nil
}

func (m *MockSessions) TouchSession(context.Context, string) {}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LoginResult), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthService) Register(ctx context.Context, actor *auth.UserSession, in services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) Create(ctx context.Context, actor *auth.UserSession, in services.TaskInput) (*models.Task, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) Update(ctx context.Context, actor *auth.UserSession, id string, patch services.TaskPatch) (*models.Task, error) {
	args := m.Called(ctx, actor, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) Assign(ctx context.Context, actor *auth.UserSession, id, assigneeID string) (*models.Task, error) {
	args := m.Called(ctx, actor, id, assigneeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) Complete(ctx context.Context, actor *auth.UserSession, id string) (*models.Task, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) Delete(ctx context.Context, actor *auth.UserSession, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) SubjectFeed(ctx context.Context, subjectType, subjectID string, before *time.Time, limit int) ([]models.ActivityLog, error) {
	args := m.Called(ctx, subjectType, subjectID, before, limit)
	return args.Get(0).([]models.ActivityLog), args.Error(1)
}

func (m *MockActivityService) ActorFeed(ctx context.Context, actorID string, before *time.Time, limit int) ([]models.ActivityLog, error) {
	args := m.Called(ctx, actorID, before, limit)
	return args.Get(0).([]models.ActivityLog), args.Error(1)
}

func (m *MockActivityService) RecentFeed(ctx context.Context, before *time.Time, limit int) ([]models.ActivityLog, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]models.ActivityLog), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockAutomationService struct {
	mock.Mock
}

func (m *MockAutomationService) List(ctx context.Context) ([]models.TaskAutomation, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.TaskAutomation), args.Error(1)
}

func (m *MockAutomationService) Get(ctx context.Context, id string) (*models.TaskAutomation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TaskAutomation), args.Error(1)
}

func (m *MockAutomationService) Create(ctx context.Context, actor *auth.UserSession, in services.AutomationInput) (*models.TaskAutomation, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TaskAutomation), args.Error(1)
}

func (m *MockAutomationService) Update(ctx context.Context, id string, in services.AutomationInput) (*models.TaskAutomation, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TaskAutomation), args.Error(1)
}

func (m *MockAutomationService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DashboardStats), args.Error(1)
}

type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) Create(ctx context.Context, user *auth.UserSession, in services.WebhookInput) (*models.Webhook, error) {
	args := m.Called(ctx, user, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Webhook), args.Error(1)
}

func (m *MockWebhookService) List(ctx context.Context, user *auth.UserSession) ([]models.Webhook, error) {
	args := m.Called(ctx, user)
	return args.Get(0).([]models.Webhook), args.Error(1)
}

func (m *MockWebhookService) Get(ctx context.Context, user *auth.UserSession, id string) (*models.Webhook, error) {
	args := m.Called(ctx, user, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Webhook), args.Error(1)
}

func (m *MockWebhookService) Update(ctx context.Context, user *auth.UserSession, id string, patch services.WebhookPatch) (*models.Webhook, error) {
	args := m.Called(ctx, user, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Webhook), args.Error(1)
}

func (m *MockWebhookService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	return m.Called(ctx, user, id).Error(0)
}

func (m *MockWebhookService) Logs(ctx context.Context, user *auth.UserSession, id string, limit int) ([]models.WebhookLog, error) {
	args := m.Called(ctx, user, id, limit)
	return args.Get(0).([]models.WebhookLog), args.Error(1)
}

func (m *MockWebhookService) SendTest(ctx context.Context, user *auth.UserSession, id string) (*services.TestDelivery, error) {
	args := m.Called(ctx, user, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TestDelivery), args.Error(1)
}
