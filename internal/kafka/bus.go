package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TopicOrderCreated   = "orders.created"
	TopicOrderPaid      = "orders.paid"
	TopicOrderCancelled = "orders.cancelled"
)

// EventBus publishes order lifecycle events to Kafka. Messages are keyed by
// order id so events for one order land on one partition in order.
type EventBus struct {
	writer *kafka.Writer
}

// NewEventBus builds a producer for the given brokers.
func NewEventBus(brokers []string) *EventBus {
	return &EventBus{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

type envelope struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (b *EventBus) PublishOrderCreated(ctx context.Context, orderID string) error {
	return b.publish(ctx, TopicOrderCreated, orderID)
}

func (b *EventBus) PublishOrderPaid(ctx context.Context, orderID string) error {
	return b.publish(ctx, TopicOrderPaid, orderID)
}

func (b *EventBus) PublishOrderCancelled(ctx context.Context, orderID string) error {
	return b.publish(ctx, TopicOrderCancelled, orderID)
}

// Close flushes and shuts down the underlying writer.
func (b *EventBus) Close() error {
	return b.writer.Close()
}

func (b *EventBus) publish(ctx context.Context, topic, orderID string) error {
	value, err := json.Marshal(envelope{
		EventID:   uuid.NewString(),
		Type:      topic,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = b.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(orderID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}
