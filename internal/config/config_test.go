package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sqliteYAML = `
http:
  address: ":9090"
  cors_origin: "http://localhost:5173"
  shutdown_timeout: 3s
store:
  driver: sqlite
  sqlite_path: /tmp/fitlog.db
outbox:
  poll_interval: 5s
log:
  level: debug
  format: json
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "fitlog", cfg.Auth.JWTIssuer)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 25, cfg.Outbox.BatchSize)
	assert.False(t, cfg.Outbox.Enabled)
	assert.Equal(t, []string{"profile_events", "activity_events"}, cfg.Consumer.Topics)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, sqliteYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, "http://localhost:5173", cfg.HTTP.CORSOrigin)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/fitlog.db", cfg.Store.SQLitePath)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.DLQ.MaxRetries)
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":7070")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CONSUMER_TOPICS", "activity_events")
	t.Setenv("DLQ_BASE_DELAY", "10s")
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "750ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	cfg, err := Load(writeTemp(t, sqliteYAML))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Address)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"activity_events"}, cfg.Consumer.Topics)
	assert.Equal(t, 10*time.Second, cfg.DLQ.BaseDelay)
	assert.Equal(t, 750*time.Millisecond, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, 25, cfg.Outbox.BatchSize, "unparseable values fall back")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestOutboxRequiresPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("OUTBOX_ENABLED", "true")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox.enabled requires the postgres driver")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidateRequiresSecret(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = " "
	assert.ErrorContains(t, cfg.Validate(), "auth.jwt_secret")
}
