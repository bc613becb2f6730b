//go:build integration

package consumer

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/fitlog/internal/events"
	"example.com/fitlog/internal/outbox"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []Message
}

func (h *recordingHandler) Handle(_ context.Context, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg)
	return nil
}

func (h *recordingHandler) snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.seen...)
}

func TestKafkaRoundTripFromProducerToProcessor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0",
		testcontainers.WithEnv(map[string]string{"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             events.TopicActivityEvents,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
	require.NoError(t, conn.Close())

	producer := outbox.NewKafkaProducer(brokers)
	defer producer.Close()

	payload := []byte(`{"activity_id":"act-int","profile_id":"p-int"}`)
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], 11)
	copy(value[5:], payload)

	require.Eventually(t, func() bool {
		return producer.WriteMessages(ctx, events.TopicActivityEvents, kafka.Message{
			Key:   []byte("p-int"),
			Value: value,
			Headers: []kafka.Header{
				{Key: events.HeaderEventType, Value: []byte(events.ActivityCreated)},
				{Key: events.HeaderSchemaSubject, Value: []byte("activity_events-activity.created")},
				{Key: events.HeaderAggregateID, Value: []byte("act-int")},
			},
		}) == nil
	}, 30*time.Second, time.Second)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "fitlog-integration",
		Topic:       events.TopicActivityEvents,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	handler := &recordingHandler{}
	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = NewProcessor(reader, handler).Run(consumerCtx) }()

	require.Eventually(t, func() bool { return len(handler.snapshot()) == 1 }, time.Minute, 500*time.Millisecond)

	got := handler.snapshot()[0]
	require.Equal(t, events.ActivityCreated, got.EventType)
	require.Equal(t, "act-int", got.AggregateID)
	require.Equal(t, 11, got.SchemaID)
	require.JSONEq(t, string(payload), string(got.Payload))
}
