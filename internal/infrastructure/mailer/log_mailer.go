package mailer

import (
	"context"
	"log/slog"

	"github.com/nexuscrm/taskdesk/internal/domain/ports"
)

var _ ports.Mailer = (*LogMailer)(nil)

// LogMailer records outbound mail in the log instead of sending it.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg ports.EmailMessage) error {
	m.logger.InfoContext(ctx, "email queued",
		"component", "mailer.log",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.Body),
	)
	return nil
}
