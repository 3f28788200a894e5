package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/segmentio/kafka-go"
)

var _ ports.StreamPublisher = (*KafkaPublisher)(nil)

const publishAttempts = 2

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes encoded domain events to a single topic, keyed by
// subject id so one subject's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher builds a publisher whose writes give up after writeTimeout
// per attempt, with at most publishAttempts attempts.
func NewKafkaPublisher(brokers []string, topic string, writeTimeout time.Duration) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: writeTimeout,
			MaxAttempts:  publishAttempts,
		},
		topic: topic,
	}, nil
}

func (p *KafkaPublisher) PublishEvent(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
