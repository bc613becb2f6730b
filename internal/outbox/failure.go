package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQWriter persists failed events for investigation and replay.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write records a failed outbox message in the DLQ alongside the supplied reason. The entry
// is immediately eligible for replay.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW())`,
		msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
	)
	return err
}

// Reschedule keeps a replayed entry in the DLQ with the latest failure reason. The retry
// schedule set by the manager on requeue stays in force.
func (w *DLQWriter) Reschedule(ctx context.Context, dlqID int64, reason string) error {
	_, err := w.pool.Exec(ctx, `UPDATE outbox_dlq SET reason = $1, last_attempt_at = NOW() WHERE dlq_id = $2`, reason, dlqID)
	return err
}

// Resolve deletes an entry whose replay was delivered.
func (w *DLQWriter) Resolve(ctx context.Context, dlqID int64) error {
	_, err := w.pool.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, dlqID)
	return err
}
