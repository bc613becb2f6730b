package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes outbox records through a single topic-less writer.
// Each message carries its own topic, so one connection pool serves every stream.
type KafkaProducer struct {
	writer *kafka.Writer
}

// ProducerOption tunes the underlying kafka.Writer.
type ProducerOption func(*kafka.Writer)

// WithBatchTimeout bounds how long the writer waits to fill a batch.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(w *kafka.Writer) {
		if d > 0 {
			w.BatchTimeout = d
		}
	}
}

// WithWriteTimeout bounds a single produce request.
func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(w *kafka.Writer) {
		if d > 0 {
			w.WriteTimeout = d
		}
	}
}

func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	// Keyed by profile id so a profile's events stay ordered on one partition.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(writer)
	}
	return &KafkaProducer{writer: writer}
}

// WriteMessages stamps every message with topic and writes them as one batch.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	for i := range msgs {
		msgs[i].Topic = topic
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Stats exposes the writer counters since the previous call.
func (p *KafkaProducer) Stats() kafka.WriterStats {
	return p.writer.Stats()
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
