package services

import (
	"context"
	"testing"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationFixture struct {
	repo   *memNotifications
	mailer *recordingMailer
	svc    *NotificationService
}

func newNotificationFixture(emailEnabled bool) *notificationFixture {
	f := &notificationFixture{repo: &memNotifications{}, mailer: &recordingMailer{}}
	f.svc = NewNotificationService(f.repo, newMemUsers(alice, bob, admin), newMemCache(), f.mailer, emailEnabled, discardLogger())
	return f
}

func TestNotification_AssigneeIsNotified(t *testing.T) {
	f := newNotificationFixture(false)
	ev := taskEvent(t, events.TaskCreated, alice, sampleTask())

	require.NoError(t, f.svc.HandleEvent(context.Background(), ev))

	got := f.repo.forRecipient(bob.ID)
	require.Len(t, got, 1)
	assert.Equal(t, "task.created", got[0].Type)
	assert.Equal(t, "/tasks/t1", got[0].Link)
	assert.Contains(t, got[0].Body, "Alice")
	assert.Equal(t, ev.ID, got[0].EventID)
}

func TestNotification_ActorIsNeverNotified(t *testing.T) {
	f := newNotificationFixture(false)
	task := sampleTask()
	task["assignee_id"] = alice.ID

	require.NoError(t, f.svc.HandleEvent(context.Background(), taskEvent(t, events.TaskCreated, alice, task)))
	assert.Empty(t, f.repo.rows)
}

func TestNotification_NoRecipientNoRow(t *testing.T) {
	f := newNotificationFixture(false)
	task := sampleTask()
	delete(task, "assignee_id")

	require.NoError(t, f.svc.HandleEvent(context.Background(), taskEvent(t, events.TaskCreated, alice, task)))
	require.NoError(t, f.svc.HandleEvent(context.Background(), taskEvent(t, events.TaskDeleted, alice, sampleTask())))
	assert.Empty(t, f.repo.rows)
}

func TestNotification_IdempotentPerEvent(t *testing.T) {
	f := newNotificationFixture(false)
	ev := taskEvent(t, events.TaskAssigned, alice, sampleTask())

	require.NoError(t, f.svc.HandleEvent(context.Background(), ev))
	require.NoError(t, f.svc.HandleEvent(context.Background(), ev))
	assert.Len(t, f.repo.rows, 1)
}

func TestNotification_DealWonBodyPrintsPlainAmount(t *testing.T) {
	f := newNotificationFixture(false)
	deal := &models.Deal{ID: "d1", Name: "Big", OwnerID: bob.ID, Amount: 2500000, Stage: constants.DealStageWon}
	ev, err := events.New(events.DealWon, alice, constants.SubjectDeal, deal.ID, map[string]any{events.KeyDeal: deal})
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleEvent(context.Background(), ev))

	got := f.repo.forRecipient(bob.ID)
	require.Len(t, got, 1)
	assert.Equal(t, `"Big" was won (2500000)`, got[0].Body)
	assert.Equal(t, "/deals/d1", got[0].Link)
}

func TestNotification_EmailOnlyWhenEnabled(t *testing.T) {
	f := newNotificationFixture(true)
	require.NoError(t, f.svc.HandleEvent(context.Background(), taskEvent(t, events.TaskAssigned, alice, sampleTask())))
	require.NoError(t, f.svc.HandleEvent(context.Background(), taskEvent(t, events.TaskUpdated, alice, sampleTask())))
	assert.Equal(t, []string{"bob@example.com|Task assigned to you"}, f.mailer.sent)

	off := newNotificationFixture(false)
	require.NoError(t, off.svc.HandleEvent(context.Background(), taskEvent(t, events.TaskAssigned, alice, sampleTask())))
	assert.Empty(t, off.mailer.sent)
}

func TestNotification_UnreadCountAndMarkRead(t *testing.T) {
	f := newNotificationFixture(false)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, taskEvent(t, events.TaskCreated, alice, sampleTask())))
	require.NoError(t, f.svc.HandleEvent(ctx, taskEvent(t, events.TaskAssigned, alice, sampleTask())))

	n, err := f.svc.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := f.svc.List(ctx, bob.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Someone else cannot mark it read.
	err = f.svc.MarkRead(ctx, list[0].ID, alice.ID)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, f.svc.MarkRead(ctx, list[0].ID, bob.ID))
	n, err = f.svc.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "mark read must invalidate the cached count")

	changed, err := f.svc.MarkAllRead(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)
	n, err = f.svc.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotification_WebhookFailedGoesToOwner(t *testing.T) {
	f := newNotificationFixture(false)
	ev, err := events.New(events.WebhookFailed, nil, constants.SubjectWebhook, "w1", map[string]any{
		"webhook":  map[string]any{"id": "w1", "owner_id": alice.ID, "url": "https://hooks.example.com"},
		"delivery": map[string]any{"attempts": 6, "event_type": "task.created"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleEvent(context.Background(), ev))
	got := f.repo.forRecipient(alice.ID)
	require.Len(t, got, 1)
	assert.Equal(t, "Delivery of task.created to https://hooks.example.com failed after 6 attempts", got[0].Body)
}
