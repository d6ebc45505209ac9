package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tixly/internal/shared/config"
	"tixly/pkg/logger"

	"github.com/IBM/sarama"
)

// Order lifecycle event types published to the order topic.
const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventOrderExpired   = "order.expired"
)

// OrderEvent is the message body for order lifecycle events. Downstream
// consumers (notifications, analytics) read these; nothing in the sale path
// depends on them.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	EventID       string    `json:"event_id"`
	CustomerID    string    `json:"customer_id"`
	ReservationID string    `json:"reservation_id,omitempty"`
	IsRSVP        bool      `json:"is_rsvp"`
	TotalCents    int64     `json:"total_cents"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Producer publishes order lifecycle events.
type Producer interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	Close() error
}

type kafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer creates a synchronous, idempotent Kafka producer. Messages
// are keyed by event id so all orders for one event land on one partition in
// order.
func NewKafkaProducer(cfg config.KafkaConfig) (Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Timeout = 10 * time.Second
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &kafkaProducer{
		producer: producer,
		topic:    cfg.OrderTopic,
	}, nil
}

func (p *kafkaProducer) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.EventID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
			{Key: []byte("order_id"), Value: []byte(event.OrderID)},
			{Key: []byte("producer"), Value: []byte("tixly-core")},
		},
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	logger.GetDefault().Debug("order event published",
		"topic", p.topic,
		"type", event.Type,
		"order_id", event.OrderID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *kafkaProducer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
	}
	return nil
}

// NoopProducer drops events; used when Kafka is disabled.
type NoopProducer struct{}

func (NoopProducer) PublishOrderEvent(ctx context.Context, event OrderEvent) error { return nil }
func (NoopProducer) Close() error                                                  { return nil }

// NewProducer picks the Kafka producer when enabled and the noop otherwise.
func NewProducer(cfg config.KafkaConfig) (Producer, error) {
	if !cfg.Enabled {
		return NoopProducer{}, nil
	}
	return NewKafkaProducer(cfg)
}
