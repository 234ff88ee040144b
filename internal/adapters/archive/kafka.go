package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

// messageWriter is the part of *kafka.Writer the archiver uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaArchiver implements ports.StatusArchiver by publishing events to a topic.
// Events are keyed by recipient so one conversation stays on one partition.
type KafkaArchiver struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaArchiver creates an archiver publishing to topic on brokers.
func NewKafkaArchiver(brokers []string, topic string) *KafkaArchiver {
	return newKafkaArchiver(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	})
}

func newKafkaArchiver(w messageWriter) *KafkaArchiver {
	return &KafkaArchiver{writer: w, now: time.Now}
}

// Archive publishes event. The message carries the partition key as a header
// so sinks can lay events out the same way the file archiver does.
func (a *KafkaArchiver) Archive(ctx context.Context, event entities.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding status event: %w", err)
	}

	key := event.ID
	if event.RecipientID != nil && *event.RecipientID != "" {
		key = *event.RecipientID
	}

	now := a.now()
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(event.Status)},
			{Key: "object-key", Value: []byte(ObjectKey(event, now))},
		},
	}
	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing status event: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (a *KafkaArchiver) Close() error {
	return a.writer.Close()
}
