package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// LifecyclePublisher publishes order status changes to a Kafka topic, keyed
// by order id so every change for one order lands on the same partition.
type LifecyclePublisher struct {
	writer kafkaMessageWriter
}

// NewLifecyclePublisher takes a comma-separated list of host:port brokers.
func NewLifecyclePublisher(bootstrap, topic string) *LifecyclePublisher {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return &LifecyclePublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func newLifecyclePublisherWith(w kafkaMessageWriter) *LifecyclePublisher {
	return &LifecyclePublisher{writer: w}
}

type lifecycleEvent struct {
	Type  string   `json:"type"`
	Order Snapshot `json:"order"`
}

func (p *LifecyclePublisher) Publish(ctx context.Context, o domain.Order) error {
	b, err := json.Marshal(lifecycleEvent{Type: "order." + string(o.Status), Order: NewSnapshot(o)})
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(o.ID), Value: b}); err != nil {
		return fmt.Errorf("publish lifecycle event: %w", err)
	}
	return nil
}

func (p *LifecyclePublisher) Close() error {
	return p.writer.Close()
}
