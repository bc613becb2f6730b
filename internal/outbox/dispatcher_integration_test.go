//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/events"
	"example.com/fitlog/internal/persistence/postgres"
	"example.com/fitlog/internal/persistence/storetest"
)

func TestDispatcherPublishesRepositoryEvents(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	seedActivity(t, ctx, pool)

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 42}, 10*time.Millisecond, 10)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 2)
	require.Equal(t, events.TopicProfileEvents, producer.writes[0].topic)
	require.Equal(t, events.TopicActivityEvents, producer.writes[1].topic)
	require.InDelta(t, beforeDelivered+2, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Zero(t, pending)

	// Nothing left to claim.
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 2)
}

func TestDispatcherRoutesFailuresToDLQAndManagerReplays(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	seedActivity(t, ctx, pool)

	registry := &stubRegistry{id: 7}
	failing := NewDispatcher(pool, &stubProducer{err: errors.New("kafka write failed")}, registry, 10*time.Millisecond, 10)

	beforeFailed := testutil.ToFloat64(failedCounter)
	require.NoError(t, failing.processBatch(ctx))
	require.InDelta(t, beforeFailed+2, testutil.ToFloat64(failedCounter), 0.0001)
	require.Equal(t, 2, countRows(t, ctx, pool, `SELECT COUNT(*) FROM outbox_dlq`))

	manager := NewDLQManager(pool, 2, time.Millisecond, zerolog.Nop())
	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, requeued)
	require.Equal(t, 2, countRows(t, ctx, pool, `SELECT COUNT(*) FROM outbox WHERE dlq_id IS NOT NULL AND published_at IS NULL`))

	// A failed replay updates the existing entries instead of adding new ones.
	require.NoError(t, failing.processBatch(ctx))
	require.Equal(t, 2, countRows(t, ctx, pool, `SELECT COUNT(*) FROM outbox_dlq WHERE retry_count = 1`))

	producer := &stubProducer{}
	healthy := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 10)
	time.Sleep(10 * time.Millisecond)
	_, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, healthy.processBatch(ctx))

	require.Len(t, producer.writes, 2)
	require.Zero(t, countRows(t, ctx, pool, `SELECT COUNT(*) FROM outbox_dlq`))
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	_, err := pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES (1, $1, $2, '{}', 'boom', 'activity', 'a-1', $3, 'p-1', 3, NOW())`,
		events.ActivityCreated, events.TopicActivityEvents, "activity_events-activity.created",
	)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 3, time.Second, zerolog.Nop())
	before := testutil.ToFloat64(dlqQuarantinedCounter.WithLabelValues(events.TopicActivityEvents, events.ActivityCreated))

	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Equal(t, 1, countRows(t, ctx, pool, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`))
	require.Zero(t, countRows(t, ctx, pool, `SELECT COUNT(*) FROM outbox`))
	require.InDelta(t, before+1, testutil.ToFloat64(dlqQuarantinedCounter.WithLabelValues(events.TopicActivityEvents, events.ActivityCreated)), 0.0001)
	require.Zero(t, testutil.ToFloat64(dlqBacklogGauge))
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("fitlog"),
		postgrescontainer.WithUsername("fitlog"),
		postgrescontainer.WithPassword("fitlog"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))
	require.NoError(t, postgres.RunMigrations(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedActivity(t *testing.T, ctx context.Context, pool *pgxpool.Pool) domain.Activity {
	t.Helper()
	repo := postgres.NewRepository(pool, postgres.WithOutbox())
	profile := storetest.NewProfile("dispatch-user")
	require.NoError(t, repo.CreateProfile(ctx, profile))
	activity := storetest.NewActivity(profile.ID, time.Now().AddDate(0, 0, -1), 45, 7.5, "tempo run")
	require.NoError(t, repo.CreateActivity(ctx, activity))
	return activity
}

func countRows(t *testing.T, ctx context.Context, pool *pgxpool.Pool, query string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(ctx, query).Scan(&n))
	return n
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
