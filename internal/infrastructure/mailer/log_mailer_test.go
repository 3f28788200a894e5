package mailer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMailer_Send(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(slog.New(slog.NewTextHandler(&buf, nil)))

	err := m.Send(context.Background(), ports.EmailMessage{To: "ada@example.com", Subject: "Deal won", Body: "hello"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "to=ada@example.com")
	assert.Contains(t, buf.String(), `subject="Deal won"`)
	assert.Contains(t, buf.String(), "body_bytes=5")
}
