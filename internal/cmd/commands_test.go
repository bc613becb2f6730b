package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/persistence/sqlite"
	"example.com/fitlog/internal/persistence/storetest"
)

func writeConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	for _, key := range []string{"STORE_DRIVER", "SQLITE_PATH", "JWT_SECRET", "JWT_ISSUER", "OUTBOX_ENABLED", "FITLOG_CONFIG"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "fitlog.db")
	configPath = filepath.Join(dir, "fitlog.yaml")
	body := "store:\n  driver: sqlite\n  sqlite_path: " + dbPath + "\nauth:\n  jwt_secret: cli-secret\n  jwt_issuer: fitlog-test\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o600))
	return configPath, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCreatesSchema(t *testing.T) {
	configPath, dbPath := writeConfig(t)

	out, err := run(t, "--config", configPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied (sqlite)")

	repo, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.CreateProfile(context.Background(), storetest.NewProfile("after-migrate")))
}

func TestTokenIssuesVerifiableToken(t *testing.T) {
	configPath, _ := writeConfig(t)

	out, err := run(t, "--config", configPath, "token", "--subject", "runner-1", "--scopes", auth.ScopeActivitiesRead, "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.Parse(strings.TrimSpace(out), auth.Config{Secret: "cli-secret", Issuer: "fitlog-test"})
	require.NoError(t, err)
	assert.Equal(t, "runner-1", claims.Subject)
	assert.True(t, claims.CanRead())
	assert.False(t, claims.CanWrite())
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestTokenRequiresSubject(t *testing.T) {
	configPath, _ := writeConfig(t)

	_, err := run(t, "--config", configPath, "token")
	require.ErrorContains(t, err, "subject")
}

func TestDeleteUserRemovesProfileAndActivities(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	_, err := run(t, "--config", configPath, "migrate")
	require.NoError(t, err)

	ctx := context.Background()
	repo, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	profile := storetest.NewProfile("leaving-user")
	require.NoError(t, repo.CreateProfile(ctx, profile))
	activity := storetest.NewActivity(profile.ID, time.Now().AddDate(0, 0, -1), 30, 5, "last run")
	require.NoError(t, repo.CreateActivity(ctx, activity))
	require.NoError(t, repo.Close())

	out, err := run(t, "--config", configPath, "delete-user", "leaving-user")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted profile of leaving-user")

	repo, err = sqlite.Open(dbPath)
	require.NoError(t, err)
	defer repo.Close()
	gone, err := repo.GetProfileByUser(ctx, "leaving-user")
	require.NoError(t, err)
	assert.Nil(t, gone)
	orphan, err := repo.GetActivity(ctx, activity.ID)
	require.NoError(t, err)
	assert.Nil(t, orphan)

	_, err = run(t, "--config", configPath, "delete-user", "leaving-user")
	require.ErrorContains(t, err, `no profile for subject "leaving-user"`)
}

func TestInvalidConfigFails(t *testing.T) {
	writeConfig(t)
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "migrate")
	require.ErrorContains(t, err, "reading config file")
}
