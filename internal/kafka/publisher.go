// Package kafka publishes ledger events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"budget/internal/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
		topic: topic,
	}
}

// Publish writes e keyed by its kind so events of one kind stay ordered.
func (p *Publisher) Publish(ctx context.Context, e events.LedgerEvent) error {
	data, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Key()),
		Value: data,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("write to topic %s: %w", p.topic, err)
	}

	slog.DebugContext(ctx, "Published ledger event", "event_id", e.ID, "kind", e.Kind, "topic", p.topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ events.Publisher = (*Publisher)(nil)
