package services

import (
	"context"
	"testing"

	"github.com/nexuscrm/taskdesk/internal/domain/events"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	apperrors "github.com/nexuscrm/taskdesk/pkg/errors"
	"github.com/nexuscrm/taskdesk/pkg/models"
	"github.com/nexuscrm/taskdesk/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type automationFixture struct {
	rules         *memAutomations
	tasks         *memTasks
	notifications *memNotifications
	dispatcher    *recordingDispatcher
	svc           *AutomationService
}

func newAutomationFixture(t *testing.T, rules ...models.TaskAutomation) *automationFixture {
	t.Helper()
	users := newMemUsers(alice, bob, admin)
	f := &automationFixture{
		rules:         &memAutomations{},
		tasks:         newMemTasks(),
		notifications: &memNotifications{},
		dispatcher:    &recordingDispatcher{},
	}
	taskSvc := NewTaskService(f.tasks, users, &passthroughTx{}, f.dispatcher, discardLogger())
	notifier := NewNotificationService(f.notifications, users, newMemCache(), &recordingMailer{}, false, discardLogger())
	f.svc = NewAutomationService(f.rules, taskSvc, notifier, discardLogger())

	for i := range rules {
		r := rules[i]
		if r.ID == "" {
			r.ID = utils.GenerateID()
		}
		r.IsActive = true
		require.NoError(t, f.svc.Validate(&r))
		require.NoError(t, f.rules.Create(context.Background(), &r))
	}
	return f
}

func (f *automationFixture) seedTask(t *testing.T) {
	t.Helper()
	require.NoError(t, f.tasks.Create(context.Background(), &models.Task{
		ID: "t1", Title: "Write report", Status: constants.TaskStatusTodo, Priority: constants.TaskPriorityHigh,
		AssigneeID: utils.Ptr(bob.ID), CreatorID: alice.ID,
	}))
}

func dealWonEvent(t *testing.T) *events.Event {
	t.Helper()
	ev, err := events.New(events.DealWon, alice, constants.SubjectDeal, "d1", map[string]any{
		events.KeyDeal: map[string]any{"id": "d1", "name": "Acme", "stage": "won", "owner_id": alice.ID, "client_id": "c1", "amount": 5000},
	})
	require.NoError(t, err)
	return ev
}

func TestAutomation_CreateTaskIsIdempotent(t *testing.T) {
	f := newAutomationFixture(t, models.TaskAutomation{
		Name:         "Kickoff",
		TriggerEvent: "deal.won",
		Condition:    "subject.amount > 1000",
		Action:       constants.AutomationCreateTask,
		ActionConfig: map[string]any{"title": "Kick off {name}", "assignee_id": "{owner_id}", "due_in_days": 3},
	})
	ctx := context.Background()
	ev := dealWonEvent(t)

	require.NoError(t, f.svc.HandleEvent(ctx, ev))
	require.NoError(t, f.svc.HandleEvent(ctx, ev))

	tasks := f.tasks.all()
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, "Kick off Acme", task.Title)
	assert.Equal(t, alice.ID, task.AssigneeOrEmpty())
	assert.Equal(t, "d1", *task.DealID)
	assert.Equal(t, "c1", *task.ClientID)
	assert.Equal(t, constants.TaskPriorityMedium, task.Priority)
	require.NotNil(t, task.DueAt)

	require.Equal(t, []events.EventType{events.TaskCreated}, f.dispatcher.types())
	created := f.dispatcher.committed[0]
	assert.Nil(t, created.Actor, "automations act as the system")
	assert.Equal(t, 1, created.AutomationDepth)
}

func TestAutomation_ConditionFiltersRules(t *testing.T) {
	f := newAutomationFixture(t, models.TaskAutomation{
		Name:         "Big deals only",
		TriggerEvent: "deal.won",
		Condition:    "subject.amount > 10000",
		Action:       constants.AutomationCreateTask,
		ActionConfig: map[string]any{"title": "Celebrate"},
	})

	require.NoError(t, f.svc.HandleEvent(context.Background(), dealWonEvent(t)))
	assert.Empty(t, f.tasks.all())
}

func TestAutomation_FirstMatchPerTargetWins(t *testing.T) {
	f := newAutomationFixture(t,
		models.TaskAutomation{
			Name: "Escalate", TriggerEvent: "task.updated", Priority: 1,
			Action: constants.AutomationSetPriority, ActionConfig: map[string]any{"priority": "urgent"},
		},
		models.TaskAutomation{
			Name: "Calm down", TriggerEvent: "task.updated", Priority: 2,
			Action: constants.AutomationSetPriority, ActionConfig: map[string]any{"priority": "low"},
		},
		models.TaskAutomation{
			Name: "Tell the creator", TriggerEvent: "task.updated", Priority: 3,
			Action: constants.AutomationNotify, ActionConfig: map[string]any{"recipient_id": "{creator_id}", "title": "{title} changed"},
		},
	)
	f.seedTask(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, taskEvent(t, events.TaskUpdated, bob, sampleTask())))

	task, err := f.tasks.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, constants.TaskPriorityUrgent, task.Priority)

	got := f.notifications.forRecipient(alice.ID)
	require.Len(t, got, 1)
	assert.Equal(t, "Write report changed", got[0].Title)
	assert.Equal(t, "automation", got[0].Type)
}

func TestAutomation_NotifyIsIdempotent(t *testing.T) {
	f := newAutomationFixture(t, models.TaskAutomation{
		Name: "Ping assignee", TriggerEvent: "task.created",
		Action: constants.AutomationNotify, ActionConfig: map[string]any{"recipient_id": "{assignee_id}", "title": "New: {title}"},
	})
	ctx := context.Background()
	ev := taskEvent(t, events.TaskCreated, alice, sampleTask())

	require.NoError(t, f.svc.HandleEvent(ctx, ev))
	require.NoError(t, f.svc.HandleEvent(ctx, ev))
	assert.Len(t, f.notifications.forRecipient(bob.ID), 1)
}

func TestAutomation_DepthLimit(t *testing.T) {
	f := newAutomationFixture(t, models.TaskAutomation{
		Name: "Loop", TriggerEvent: "task.updated",
		Action: constants.AutomationSetPriority, ActionConfig: map[string]any{"priority": "urgent"},
	})
	f.seedTask(t)
	ev := taskEvent(t, events.TaskUpdated, bob, sampleTask())
	ev.AutomationDepth = constants.MaxAutomationDepth

	require.NoError(t, f.svc.HandleEvent(context.Background(), ev))
	task, _ := f.tasks.Get(context.Background(), "t1")
	assert.Equal(t, constants.TaskPriorityHigh, task.Priority)
	assert.Empty(t, f.dispatcher.types())
}

func TestAutomation_ChildEventsCarryDepth(t *testing.T) {
	f := newAutomationFixture(t, models.TaskAutomation{
		Name: "Escalate", TriggerEvent: "task.updated",
		Action: constants.AutomationSetPriority, ActionConfig: map[string]any{"priority": "urgent"},
	})
	f.seedTask(t)
	ev := taskEvent(t, events.TaskUpdated, bob, sampleTask())
	ev.AutomationDepth = 1

	require.NoError(t, f.svc.HandleEvent(context.Background(), ev))
	require.Len(t, f.dispatcher.committed, 1)
	assert.Equal(t, 2, f.dispatcher.committed[0].AutomationDepth)
}

func TestAutomation_FailureDoesNotStopOthers(t *testing.T) {
	f := newAutomationFixture(t,
		models.TaskAutomation{
			Name: "Assign to ghost", TriggerEvent: "task.created", Priority: 1,
			Action: constants.AutomationAssignTask, ActionConfig: map[string]any{"assignee_id": "u-ghost"},
		},
		models.TaskAutomation{
			Name: "Ping", TriggerEvent: "task.created", Priority: 2,
			Action: constants.AutomationNotify, ActionConfig: map[string]any{"recipient_id": "{creator_id}", "title": "hi"},
		},
	)
	f.seedTask(t)

	require.NoError(t, f.svc.HandleEvent(context.Background(), taskEvent(t, events.TaskCreated, bob, sampleTask())))
	assert.Len(t, f.notifications.forRecipient(alice.ID), 1)
}

func TestAutomation_Validate(t *testing.T) {
	f := newAutomationFixture(t)

	tests := []struct {
		name  string
		rule  models.TaskAutomation
		field string
	}{
		{"missing name", models.TaskAutomation{TriggerEvent: "task.created", Action: constants.AutomationNotify}, "name"},
		{"unknown trigger", models.TaskAutomation{Name: "x", TriggerEvent: "task.exploded", Action: constants.AutomationNotify}, "trigger_event"},
		{"unknown action", models.TaskAutomation{Name: "x", TriggerEvent: "task.created", Action: "dance"}, "action"},
		{"bad condition", models.TaskAutomation{Name: "x", TriggerEvent: "task.created", Action: constants.AutomationCreateTask, Condition: "subject.(", ActionConfig: map[string]any{"title": "t"}}, "condition"},
		{"missing title", models.TaskAutomation{Name: "x", TriggerEvent: "task.created", Action: constants.AutomationCreateTask}, "action_config.title"},
		{"bad priority", models.TaskAutomation{Name: "x", TriggerEvent: "task.created", Action: constants.AutomationSetPriority, ActionConfig: map[string]any{"priority": "asap"}}, "action_config.priority"},
		{"notify without recipient", models.TaskAutomation{Name: "x", TriggerEvent: "task.created", Action: constants.AutomationNotify, ActionConfig: map[string]any{"title": "t"}}, "action_config.recipient_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Validate(&tt.rule)
			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAutomation_Management(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, admin, AutomationInput{
		Name: " Escalate ", TriggerEvent: "task.created",
		Action: constants.AutomationSetPriority, ActionConfig: map[string]any{"priority": "urgent"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Escalate", a.Name)
	assert.True(t, a.IsActive)
	assert.Equal(t, admin.ID, *a.CreatedBy)

	updated, err := f.svc.Update(ctx, a.ID, AutomationInput{
		Name: "Escalate", TriggerEvent: "task.created", IsActive: utils.Ptr(false),
		Action: constants.AutomationSetPriority, ActionConfig: map[string]any{"priority": "high"},
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	require.NoError(t, f.svc.Delete(ctx, a.ID))
	_, err = f.svc.Get(ctx, a.ID)
	assert.True(t, apperrors.IsNotFound(err))

	n, err := f.svc.Seed(ctx, []models.TaskAutomation{
		{Name: "one", TriggerEvent: "deal.won", Action: constants.AutomationCreateTask, ActionConfig: map[string]any{"title": "t"}, IsActive: true},
		{Name: "two", TriggerEvent: "task.overdue", Action: constants.AutomationNotify, ActionConfig: map[string]any{"recipient_id": "{creator_id}", "title": "late"}, IsActive: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
