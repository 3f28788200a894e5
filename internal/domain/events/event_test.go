package events

import (
	"testing"
	"time"

	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleTask struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	DueAt *time.Time `json:"due_at,omitempty"`
}

func TestNew_NormalizesPayload(t *testing.T) {
	actor := &auth.UserSession{ID: "u1", Name: "Ada"}
	ev, err := New(TaskCreated, actor, "task", "t1", map[string]any{
		KeyTask: &sampleTask{ID: "t1", Title: "Call Bob"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
	assert.Equal(t, "Call Bob", ev.Str(KeyTask, "title"))
	assert.Equal(t, "t1", ev.Object(KeyTask)["id"])
	assert.Nil(t, ev.Lookup(KeyTask, "due_at"))
	assert.Equal(t, "u1", ev.ActorID())
	assert.Equal(t, "Ada", ev.ActorName())
}

func TestMarshalDecode(t *testing.T) {
	ev, err := New(DealWon, nil, "deal", "d1", map[string]any{KeyDeal: map[string]any{"amount": 100}})
	require.NoError(t, err)
	ev.AutomationDepth = 2

	raw, err := ev.Marshal()
	require.NoError(t, err)

	back, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, DealWon, back.Type)
	assert.Equal(t, 2, back.AutomationDepth)
	assert.Equal(t, float64(100), back.Lookup(KeyDeal, "amount"))
	assert.Equal(t, "System", back.ActorName())
	assert.Equal(t, "", back.ActorID())
}

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown("deal.stage_changed"))
	assert.False(t, IsKnown("deal.exploded"))
}
