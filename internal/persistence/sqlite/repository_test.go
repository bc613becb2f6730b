package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/persistence/storetest"
)

func openTemp(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fitlog.db")
	require.NoError(t, RunMigrations(path))

	repo, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Repository {
		return openTemp(t)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitlog.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}

func TestActivityRequiresProfile(t *testing.T) {
	repo := openTemp(t)
	err := repo.CreateActivity(context.Background(), storetest.NewActivity("missing-profile", time.Now(), 10, 1, ""))
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestTimestampsRoundTrip(t *testing.T) {
	repo := openTemp(t)
	ctx := context.Background()

	profile := storetest.NewProfile("tess")
	profile.CreatedAt = time.Date(2024, time.January, 2, 3, 4, 5, 600, time.UTC)
	require.NoError(t, repo.CreateProfile(ctx, profile))

	stored, err := repo.GetProfileByUser(ctx, "tess")
	require.NoError(t, err)
	require.True(t, profile.CreatedAt.Equal(stored.CreatedAt))
	require.NoError(t, repo.Ping(ctx))
}
