package ports

import "context"

// EmailMessage is a single outbound email.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// StreamPublisher writes encoded events to an external log such as Kafka.
type StreamPublisher interface {
	PublishEvent(ctx context.Context, key string, value []byte) error
	Close() error
}
