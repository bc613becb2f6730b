package consumer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler appends consumed events to the activity_event_log audit table.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

const insertEventLog = `INSERT INTO activity_event_log
        (event_type, aggregate_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
    VALUES
        (@event_type, @aggregate_id, @schema_id, @schema_subject, @topic, @partition, @offset, @payload, @received_at)
    ON CONFLICT (topic, partition, record_offset) DO NOTHING`

// Handle stores msg once; a redelivery of the same topic, partition and offset is a no-op.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.pool.Exec(ctx, insertEventLog, pgx.NamedArgs{
		"event_type":     msg.EventType,
		"aggregate_id":   msg.AggregateID,
		"schema_id":      msg.SchemaID,
		"schema_subject": msg.SchemaSubject,
		"topic":          msg.Topic,
		"partition":      msg.Partition,
		"offset":         msg.Offset,
		"payload":        msg.Payload,
		"received_at":    msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("recording %s at %s/%d/%d: %w", msg.EventType, msg.Topic, msg.Partition, msg.Offset, err)
	}
	return nil
}
