package services

import (
	"context"
	"testing"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSchedulerFixture() (*SchedulerService, *taskFixture, *memWebhookLogs) {
	tf := newTaskFixture()
	logs := &memWebhookLogs{}
	outbox := NewOutboxService(&memOutbox{}, NewEventBus(), &passthroughTx{}, discardLogger())
	authSvc := NewAuthService(newMemUsers(), newMemSessions(), nil, &passthroughTx{}, tf.dispatcher, discardLogger())
	return NewSchedulerService(tf.svc, outbox, logs, authSvc, discardLogger()), tf, logs
}

func TestScheduler_RegistersJobs(t *testing.T) {
	s, _, _ := newSchedulerFixture()
	require.NoError(t, s.Register())
	assert.Len(t, s.Entries(), 4)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

func TestScheduler_ScanOverdue(t *testing.T) {
	s, tf, _ := newSchedulerFixture()
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	_, err := tf.svc.Create(ctx, alice, TaskInput{Title: "Late", DueAt: &past})
	require.NoError(t, err)

	s.ScanOverdue(ctx)
	assert.Contains(t, tf.dispatcher.types(), events.TaskOverdue)
}

func TestScheduler_PurgeWebhookLogs(t *testing.T) {
	s, _, logs := newSchedulerFixture()
	old := time.Now().UTC().Add(-WebhookLogRetention - time.Hour)
	logs.logs = []*models.WebhookLog{
		{ID: "l1", Status: constants.WebhookLogDelivered, DeliveredAt: &old},
		{ID: "l2", Status: constants.WebhookLogDelivered, DeliveredAt: utils.Ptr(time.Now().UTC())},
		{ID: "l3", Status: constants.WebhookLogFailed},
	}

	s.PurgeWebhookLogs(context.Background())
	snap := logs.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "l2", snap[0].ID)
}

func TestScheduler_WrapRecoversPanics(t *testing.T) {
	s, _, _ := newSchedulerFixture()
	assert.NotPanics(t, s.wrap("boom", func(ctx context.Context) { panic("boom") }))
}
