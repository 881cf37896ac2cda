package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewPublisherDisabledIsNoop(t *testing.T) {
	p, err := NewPublisher(config.EventsConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeTimetableSaved}))
}

func TestNewPublisherValidatesConfig(t *testing.T) {
	_, err := NewPublisher(config.EventsConfig{Enabled: true, Brokers: []string{"k:9092"}}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewPublisher(config.EventsConfig{Enabled: true, Topic: "sma.timetables"}, zap.NewNop())
	assert.Error(t, err)

	p, err := NewPublisher(config.EventsConfig{Enabled: true, Topic: "sma.timetables", Brokers: []string{"k:9092"}}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
}

func TestKafkaPublisherWritesKeyedJSON(t *testing.T) {
	writer := &fakeWriter{}
	p := newKafkaPublisher(writer, "sma.timetables", zap.NewNop())
	fixed := time.Date(2026, 7, 13, 7, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	err := p.Publish(context.Background(), Event{
		Type:    TypeTimetablePublished,
		Key:     "run-1",
		Payload: map[string]string{"grade": "10"},
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "run-1", string(msg.Key))
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, TypeTimetablePublished, string(msg.Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, TypeTimetablePublished, decoded["type"])
	assert.Equal(t, "2026-07-13T07:00:00Z", decoded["occurredAt"])
	assert.Equal(t, map[string]interface{}{"grade": "10"}, decoded["payload"])

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisherErrors(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(writer, "sma.timetables", zap.NewNop())

	err := p.Publish(context.Background(), Event{Type: TypeTimetableSaved, Key: "run-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	assert.Error(t, p.Publish(context.Background(), Event{Type: TypeTimetableSaved}))
}
