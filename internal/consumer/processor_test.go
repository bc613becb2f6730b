package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func framed(schemaID int, payload string) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func eventRecord(offset int64, eventType string, value []byte) kafka.Message {
	return kafka.Message{
		Topic:     "activity_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "aggregate_id", Value: []byte("activity-1")},
			{Key: "schema_subject", Value: []byte("activity_events-" + eventType)},
		},
	}
}

func newTestProcessor(t *testing.T, reader Reader, handler Handler) *Processor {
	return NewProcessor(reader, handler,
		WithLogger(zerolog.New(zerolog.NewTestWriter(t))),
		WithFetchBackoff(time.Millisecond),
	)
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"activity_id":"activity-1","distance":7.5}`
	reader := &stubReader{messages: []kafka.Message{eventRecord(10, "activity.created", framed(42, payload))}}
	handler := &stubHandler{}

	before := testutil.ToFloat64(processedCounter.WithLabelValues("activity_events", "activity.created"))

	err := newTestProcessor(t, reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "activity.created", handler.last.EventType)
	require.Equal(t, "activity-1", handler.last.AggregateID)
	require.Equal(t, "activity_events-activity.created", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.Equal(t, int64(10), handler.last.Offset)
	require.JSONEq(t, payload, string(handler.last.Payload))
	require.InDelta(t, before+1, testutil.ToFloat64(processedCounter.WithLabelValues("activity_events", "activity.created")), 0.0001)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{eventRecord(20, "activity.deleted", framed(99, `{"activity_id":"activity-1"}`))}}
	handler := &stubHandler{err: errors.New("boom")}

	before := testutil.ToFloat64(handlerErrorCounter.WithLabelValues("activity_events", "activity.deleted"))

	err := newTestProcessor(t, reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(handlerErrorCounter.WithLabelValues("activity_events", "activity.deleted")), 0.0001)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	missingHeader := eventRecord(1, "activity.created", framed(1, `{}`))
	missingHeader.Headers = nil

	reader := &stubReader{messages: []kafka.Message{
		eventRecord(0, "activity.created", []byte{0, 1}),
		missingHeader,
		eventRecord(2, "activity.created", framed(1, `not json`)),
		eventRecord(3, "activity.created", append([]byte{9}, framed(1, `{}`)[1:]...)),
	}}
	handler := &stubHandler{}

	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_events"))

	err := newTestProcessor(t, reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 4, reader.commitCalls)
	require.InDelta(t, before+4, testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_events")), 0.0001)
}

func TestProcessorRetriesAfterFetchError(t *testing.T) {
	reader := &stubReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		messages:  []kafka.Message{eventRecord(5, "profile.updated", framed(3, `{"profile_id":"p"}`))},
	}
	handler := &stubHandler{}

	err := newTestProcessor(t, reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

func TestProcessorStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &stubReader{messages: []kafka.Message{eventRecord(1, "activity.created", framed(1, `{}`))}}
	err := newTestProcessor(t, reader, &stubHandler{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, reader.index)
}

type stubReader struct {
	fetchErrs   []error
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

func TestDecodeMessageErrors(t *testing.T) {
	noHeaders := eventRecord(1, "activity.created", framed(1, `{}`))
	noHeaders.Headers = nil

	cases := map[string]struct {
		record kafka.Message
		want   error
	}{
		"short":          {eventRecord(0, "activity.created", []byte{0, 0, 0}), ErrShortRecord},
		"magic":          {eventRecord(0, "activity.created", append([]byte{1}, framed(1, `{}`)[1:]...)), ErrUnknownMagic},
		"no event type":  {noHeaders, ErrMissingEventType},
		"broken payload": {eventRecord(0, "activity.created", framed(1, `{"a":`)), ErrPayloadNotJSON},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeMessage(tc.record)
			require.ErrorIs(t, err, tc.want)
		})
	}
}
