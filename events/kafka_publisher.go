package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-reveal/core"
	"github.com/segmentio/kafka-go"
)

const EventAttemptRecorded = "reveal.attempt.recorded"

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type AttemptEvent struct {
	EventType  string       `json:"event_type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Attempt    core.Attempt `json:"attempt"`
}

// KafkaPublisher streams audit attempts to a topic, keyed by idempotency
// key so retries of one attempt land on one partition. It satisfies
// core.AttemptRecorder.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("events: kafka publisher requires at least one broker")
	}
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}, topic)
}

func NewKafkaPublisherWithWriter(writer MessageWriter, topic string) (*KafkaPublisher, error) {
	if writer == nil {
		return nil, fmt.Errorf("events: kafka writer is required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = core.DefaultKafkaTopic
	}
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *KafkaPublisher) Record(ctx context.Context, attempt core.Attempt) error {
	occurredAt := p.now()
	payload, err := json.Marshal(AttemptEvent{
		EventType:  EventAttemptRecorded,
		OccurredAt: occurredAt,
		Attempt:    attempt,
	})
	if err != nil {
		return fmt.Errorf("events: encode attempt: %w", err)
	}
	key := attempt.IdempotencyKey
	if key == "" {
		key = attempt.ID
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: payload,
		Time:  occurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventAttemptRecorded)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ core.AttemptRecorder = (*KafkaPublisher)(nil)
