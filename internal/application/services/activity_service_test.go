package services

import (
	"context"
	"testing"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate_Descriptions(t *testing.T) {
	deal := map[string]any{"id": "d1", "name": "Acme renewal", "stage": "qualified", "owner_id": alice.ID, "amount": 1200}

	tests := []struct {
		name    string
		typ     events.EventType
		actor   *auth.UserSession
		subject string
		payload map[string]any
		want    string
	}{
		{
			name: "task completed", typ: events.TaskCompleted, actor: alice, subject: "task",
			payload: map[string]any{"task": sampleTask()},
			want:    `Alice completed task "Write report"`,
		},
		{
			name: "system actor", typ: events.TaskOverdue, actor: nil, subject: "task",
			payload: map[string]any{"task": sampleTask()},
			want:    `Task "Write report" is overdue`,
		},
		{
			name: "task updated lists fields", typ: events.TaskUpdated, actor: bob, subject: "task",
			payload: map[string]any{
				"task":    sampleTask(),
				"changes": map[string]any{"title": map[string]any{"old": "a", "new": "b"}, "priority": map[string]any{"old": "low", "new": "high"}},
			},
			want: `Bob updated task "Write report" (priority, title)`,
		},
		{
			name: "deal stage", typ: events.DealStageChanged, actor: alice, subject: "deal",
			payload: map[string]any{"deal": deal, "previous_stage": "lead"},
			want:    `Alice moved deal "Acme renewal" from lead to qualified`,
		},
		{
			name: "deal lost", typ: events.DealLost, actor: alice, subject: "deal",
			payload: map[string]any{"deal": deal, "reason": "budget"},
			want:    `Alice lost deal "Acme renewal": budget`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.payload[tt.subject].(map[string]any)["id"].(string)
			ev, err := events.New(tt.typ, tt.actor, tt.subject, id, tt.payload)
			require.NoError(t, err)

			entry := Translate(ev)
			require.NotNil(t, entry)
			assert.Equal(t, tt.want, entry.Description)
			assert.Equal(t, ev.ID, entry.EventID)
			assert.Equal(t, id, entry.SubjectID)
			if tt.actor == nil {
				assert.Nil(t, entry.ActorID)
			} else {
				assert.Equal(t, tt.actor.ID, *entry.ActorID)
			}
		})
	}
}

func TestTranslate_MetadataKeepsChanges(t *testing.T) {
	ev, err := events.New(events.TaskUpdated, alice, "task", "t1", map[string]any{
		"task":    sampleTask(),
		"changes": map[string]any{"priority": map[string]any{"old": "low", "new": "high"}},
	})
	require.NoError(t, err)

	entry := Translate(ev)
	assert.Equal(t, "Write report", entry.Metadata["title"])
	assert.Equal(t, "high", entry.Metadata["priority"])
	assert.Contains(t, entry.Metadata, "changes")
}

func TestActivityService_HandleEventIsIdempotent(t *testing.T) {
	repo := &memActivity{}
	svc := NewActivityService(repo, newMemCache(), discardLogger())
	ev := taskEvent(t, events.TaskCreated, alice, sampleTask())

	require.NoError(t, svc.HandleEvent(context.Background(), ev))
	require.NoError(t, svc.HandleEvent(context.Background(), ev))
	assert.Len(t, repo.rows, 1)
}

func TestActivityService_SubjectFeedCachesFirstPage(t *testing.T) {
	repo := &memActivity{}
	c := newMemCache()
	svc := NewActivityService(repo, c, discardLogger())
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, taskEvent(t, events.TaskCreated, alice, sampleTask())))

	feed, err := svc.SubjectFeed(ctx, "task", "t1", nil, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)

	_, err = c.Get(ctx, constants.ActivityFeedKey("task", "t1"))
	require.NoError(t, err, "first page should be cached")

	// A new event for the subject drops the cached page.
	require.NoError(t, svc.HandleEvent(ctx, taskEvent(t, events.TaskCompleted, alice, sampleTask())))
	feed, err = svc.SubjectFeed(ctx, "task", "t1", nil, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "task.completed", feed[0].EventType)
}

func TestActivityService_ActorAndRecentFeeds(t *testing.T) {
	repo := &memActivity{}
	svc := NewActivityService(repo, newMemCache(), discardLogger())
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, taskEvent(t, events.TaskCreated, alice, sampleTask())))
	require.NoError(t, svc.HandleEvent(ctx, taskEvent(t, events.TaskUpdated, bob, sampleTask())))

	mine, err := svc.ActorFeed(ctx, bob.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "task.updated", mine[0].EventType)

	recent, err := svc.RecentFeed(ctx, nil, 1000)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
