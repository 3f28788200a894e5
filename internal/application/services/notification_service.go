package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
)

type notificationRule struct {
	recipient func(ev *events.Event) string
	title     string
	body      string
	email     bool
}

func subjectField(field string) func(ev *events.Event) string {
	return func(ev *events.Event) string {
		return ev.Str(ev.SubjectType, field)
	}
}

var notificationRules = map[events.EventType]notificationRule{
	events.TaskCreated: {
		recipient: subjectField("assignee_id"),
		title:     "New task",
		body:      `{actor} created "{title}" and assigned it to you`,
	},
	events.TaskUpdated: {
		recipient: subjectField("assignee_id"),
		title:     "Task updated",
		body:      `{actor} changed {fields} on "{title}"`,
	},
	events.TaskAssigned: {
		recipient: subjectField("assignee_id"),
		title:     "Task assigned to you",
		body:      `{actor} assigned you "{title}"`,
		email:     true,
	},
	events.TaskCompleted: {
		recipient: subjectField("creator_id"),
		title:     "Task completed",
		body:      `{actor} completed "{title}"`,
	},
	events.TaskOverdue: {
		recipient: subjectField("assignee_id"),
		title:     "Task overdue",
		body:      `"{title}" was due {due_at}`,
	},
	events.DealCreated: {
		recipient: subjectField("owner_id"),
		title:     "New deal",
		body:      `{actor} created "{name}" for you`,
	},
	events.DealStageChanged: {
		recipient: subjectField("owner_id"),
		title:     "Deal stage changed",
		body:      `{actor} moved "{name}" from {previous_stage} to {stage}`,
	},
	events.DealWon: {
		recipient: subjectField("owner_id"),
		title:     "Deal won",
		body:      `"{name}" was won ({amount})`,
		email:     true,
	},
	events.DealLost: {
		recipient: subjectField("owner_id"),
		title:     "Deal lost",
		body:      `"{name}" was lost: {reason}`,
	},
	events.WebhookFailed: {
		recipient: subjectField("owner_id"),
		title:     "Webhook delivery failed",
		body:      `Delivery of {event} to {url} failed after {attempts} attempts`,
	},
}

// NotificationService turns events into per-user notifications and serves
// the inbox.
type NotificationService struct {
	repo         NotificationStore
	users        UserStore
	cache        ports.Cache
	mailer       ports.Mailer
	emailEnabled bool
	logger       *slog.Logger
}

func NewNotificationService(repo NotificationStore, users UserStore, cache ports.Cache, mailer ports.Mailer, emailEnabled bool, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		repo:         repo,
		users:        users,
		cache:        cache,
		mailer:       mailer,
		emailEnabled: emailEnabled,
		logger:       logger,
	}
}

// Register subscribes to every event type that has a notification rule.
func (s *NotificationService) Register(bus ports.EventPublisher) []func() {
	unsubs := make([]func(), 0, len(notificationRules))
	for _, t := range events.AllTypes() {
		if _, ok := notificationRules[t]; ok {
			unsubs = append(unsubs, bus.Subscribe(t, s.HandleEvent))
		}
	}
	return unsubs
}

// HandleEvent applies the rule for the event's type.
func (s *NotificationService) HandleEvent(ctx context.Context, ev *events.Event) error {
	rule, ok := notificationRules[ev.Type]
	if !ok {
		return nil
	}
	ctx = logger.WithComponent(ctx, "listener.notification")

	recipient := rule.recipient(ev)
	if recipient == "" || recipient == ev.ActorID() {
		return nil
	}

	vars := templateVars(ev)
	n := &models.Notification{
		ID:          utils.GenerateID(),
		RecipientID: recipient,
		Type:        ev.Type.String(),
		Title:       render(rule.title, vars),
		Body:        render(rule.body, vars),
		Link:        subjectLink(ev.SubjectType, ev.SubjectID),
		EventID:     ev.ID,
		CreatedAt:   ev.OccurredAt,
	}

	inserted, err := s.Deliver(ctx, n)
	if err != nil {
		return fmt.Errorf("notification for %s: %w", ev.Type, err)
	}
	if inserted && rule.email && s.emailEnabled {
		s.sendEmail(ctx, n)
	}
	return nil
}

// Deliver stores a notification and drops the recipient's cached unread count.
// A notification already stored for the same recipient and event is ignored.
func (s *NotificationService) Deliver(ctx context.Context, n *models.Notification) (bool, error) {
	inserted, err := s.repo.Insert(ctx, n)
	if err != nil {
		return false, err
	}
	if inserted {
		s.invalidateUnread(ctx, n.RecipientID)
	}
	return inserted, nil
}

func (s *NotificationService) sendEmail(ctx context.Context, n *models.Notification) {
	user, err := s.users.FindByID(ctx, n.RecipientID)
	if err != nil || user == nil || user.Email == "" {
		s.logger.WarnContext(ctx, "no email address for notification recipient", "recipient_id", n.RecipientID, "error", err)
		return
	}
	msg := ports.EmailMessage{To: user.Email, Subject: n.Title, Body: n.Body}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "notification email failed", "recipient_id", n.RecipientID, "error", err)
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	limit = utils.ClampLimit(limit, constants.DefaultPageLimit, constants.MaxPageLimit)
	return s.repo.ListForRecipient(ctx, userID, unreadOnly, limit)
}

// UnreadCount is served from cache when possible.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	key := constants.UnreadCountKey(userID)
	raw, err := s.cache.Get(ctx, key)
	if err == nil {
		if n, convErr := strconv.Atoi(string(raw)); convErr == nil {
			return n, nil
		}
	} else if !errors.Is(err, ports.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "unread count cache read failed", "error", err)
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Set(ctx, key, []byte(strconv.Itoa(count)), constants.UnreadCountTTL); err != nil {
		s.logger.WarnContext(ctx, "unread count cache write failed", "error", err)
	}
	return count, nil
}

// MarkRead marks one notification read. Notifications addressed to someone
// else are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	found, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NewNotFoundError("notification", id)
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// MarkAllRead marks every unread notification of the user and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.invalidateUnread(ctx, userID)
	return n, nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, constants.UnreadCountKey(userID)); err != nil {
		s.logger.WarnContext(ctx, "unread count cache invalidation failed", "user_id", userID, "error", err)
	}
}
