package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

// Event types emitted over the timetable lifecycle.
const (
	TypeTimetableGenerated = "timetable.generated"
	TypeTimetableSaved     = "timetable.saved"
	TypeTimetablePublished = "timetable.published"
	TypeTimetableDeleted   = "timetable.deleted"
)

const writeTimeout = 5 * time.Second

// Event is the JSON envelope written to the topic. Key drives partitioning so all
// events of one run land on the same partition.
type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// Publisher delivers lifecycle events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events synchronously through a kafka-go writer.
type KafkaPublisher struct {
	writer kafkaMessageWriter
	topic  string
	logger *zap.Logger
	now    func() time.Time
}

// NewPublisher returns a Kafka publisher, or a no-op publisher when events are disabled.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("event publishing disabled")
		return NopPublisher{}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("events topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one events broker is required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           writeTimeout,
	}
	return newKafkaPublisher(writer, cfg.Topic, logger), nil
}

func newKafkaPublisher(writer kafkaMessageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With(zap.String("component", "events"), zap.String("topic", topic)),
		now:    time.Now,
	}
}

// Publish encodes the event and writes it keyed by Event.Key.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.Type == "" || event.Key == "" {
		return errors.New("event type and key are required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.logger.Error("publish event failed", zap.String("type", event.Type), zap.String("key", event.Key), zap.Error(err))
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	p.logger.Debug("event published", zap.String("type", event.Type), zap.String("key", event.Key))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
