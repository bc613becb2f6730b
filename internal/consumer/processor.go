// Package consumer reads profile and activity events from Kafka and hands them to a Handler.
package consumer

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/fitlog/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	AggregateID   string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) {
		p.log = logger
	}
}

// WithFetchBackoff sets the pause after a failed fetch.
func WithFetchBackoff(d time.Duration) Option {
	return func(p *Processor) {
		p.fetchBackoff = d
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader       Reader
	handler      Handler
	log          zerolog.Logger
	fetchBackoff time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:       reader,
		handler:      handler,
		log:          zerolog.Nop(),
		fetchBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Errors reported for records that can never be handled. They are committed and counted
// rather than retried.
var (
	ErrShortRecord      = errors.New("record shorter than wire header")
	ErrUnknownMagic     = errors.New("unknown magic byte")
	ErrMissingEventType = errors.New("missing event_type header")
	ErrPayloadNotJSON   = errors.New("payload is not valid JSON")
)

const wireHeaderLen = 5

// Run processes messages until ctx is cancelled. Successfully handled and undecodable
// messages are committed; handler failures are left uncommitted.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.reader.FetchMessage(ctx)
		switch {
		case err == nil:
			p.process(ctx, record)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			p.log.Warn().Err(err).Dur("backoff", p.fetchBackoff).Msg("fetch failed")
			if err := sleep(ctx, p.fetchBackoff); err != nil {
				return err
			}
		}
	}
}

func (p *Processor) process(ctx context.Context, record kafka.Message) {
	log := p.log.With().Str("topic", record.Topic).Int("partition", record.Partition).Int64("offset", record.Offset).Logger()

	msg, err := decodeMessage(record)
	if err != nil {
		recordDecodeError(record.Topic)
		log.Error().Err(err).Msg("skipping undecodable record")
		p.commit(ctx, log, record)
		return
	}

	if err := p.handler.Handle(ctx, msg); err != nil {
		recordHandlerError(msg)
		log.Error().Err(err).Str("event_type", msg.EventType).Str("aggregate_id", msg.AggregateID).Msg("handler failed")
		return
	}

	if p.commit(ctx, log, record) {
		recordProcessed(msg)
		log.Debug().Str("event_type", msg.EventType).Msg("event handled")
	}
}

func (p *Processor) commit(ctx context.Context, log zerolog.Logger, record kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, record); err != nil {
		log.Error().Err(err).Msg("commit failed")
		return false
	}
	return true
}

// decodeMessage unwraps the magic byte and schema id framing and the event headers.
func decodeMessage(record kafka.Message) (Message, error) {
	if len(record.Value) < wireHeaderLen {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrShortRecord, len(record.Value))
	}
	if magic := record.Value[0]; magic != 0 {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownMagic, magic)
	}

	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers[events.HeaderEventType] == "" {
		return Message{}, ErrMissingEventType
	}

	body := record.Value[wireHeaderLen:]
	if !json.Valid(body) {
		return Message{}, ErrPayloadNotJSON
	}

	return Message{
		Topic:         record.Topic,
		Partition:     record.Partition,
		Offset:        record.Offset,
		Timestamp:     record.Time,
		EventType:     headers[events.HeaderEventType],
		AggregateID:   headers[events.HeaderAggregateID],
		SchemaSubject: headers[events.HeaderSchemaSubject],
		SchemaID:      int(binary.BigEndian.Uint32(record.Value[1:wireHeaderLen])),
		Payload:       json.RawMessage(bytes.Clone(body)),
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
