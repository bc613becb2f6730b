// Package storetest provides a conformance suite that every domain.Repository
// implementation runs in its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/fitlog/internal/domain"
)

// Factory returns a fresh, empty repository for one subtest.
type Factory func(t *testing.T) domain.Repository

var base = time.Date(2024, time.March, 10, 8, 30, 0, 0, time.UTC)

// Run executes the repository contract against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("ProfileLifecycle", func(t *testing.T) { testProfileLifecycle(t, newRepo(t)) })
	t.Run("DuplicateProfile", func(t *testing.T) { testDuplicateProfile(t, newRepo(t)) })
	t.Run("ActivityLifecycle", func(t *testing.T) { testActivityLifecycle(t, newRepo(t)) })
	t.Run("ListOrdersAndFilters", func(t *testing.T) { testListOrdersAndFilters(t, newRepo(t)) })
	t.Run("ListIsScopedToProfile", func(t *testing.T) { testListScopedToProfile(t, newRepo(t)) })
	t.Run("DeleteProfileCascades", func(t *testing.T) { testDeleteProfileCascades(t, newRepo(t)) })
}

// NewProfile builds a valid profile for userID.
func NewProfile(userID string) domain.Profile {
	return domain.Profile{
		ID:        uuid.NewString(),
		UserID:    userID,
		WeightKg:  40,
		HeightCm:  140,
		AgeYears:  20,
		Gender:    domain.GenderFemale,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

// NewActivity builds a valid activity owned by profileID.
func NewActivity(profileID string, date time.Time, duration int, distance float64, comment string) domain.Activity {
	return domain.Activity{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		Date:        domain.CalendarDate(date),
		DurationMin: duration,
		DistanceKm:  distance,
		Comment:     comment,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

func testProfileLifecycle(t *testing.T, repo domain.Repository) {
	ctx := context.Background()

	missing, err := repo.GetProfileByUser(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, missing)

	profile := NewProfile("alice")
	require.NoError(t, repo.CreateProfile(ctx, profile))

	stored, err := repo.GetProfileByUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, profile.ID, stored.ID)
	require.Equal(t, 40, stored.WeightKg)
	require.Equal(t, 140, stored.HeightCm)
	require.Equal(t, 20, stored.AgeYears)
	require.Equal(t, domain.GenderFemale, stored.Gender)

	stored.WeightKg = 55
	stored.Gender = domain.GenderMale
	stored.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, repo.UpdateProfile(ctx, *stored))

	updated, err := repo.GetProfileByUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 55, updated.WeightKg)
	require.Equal(t, domain.GenderMale, updated.Gender)
}

func testDuplicateProfile(t *testing.T, repo domain.Repository) {
	ctx := context.Background()

	require.NoError(t, repo.CreateProfile(ctx, NewProfile("bob")))
	err := repo.CreateProfile(ctx, NewProfile("bob"))
	require.ErrorIs(t, err, domain.ErrProfileExists)
}

func testActivityLifecycle(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	profile := NewProfile("carol")
	require.NoError(t, repo.CreateProfile(ctx, profile))

	missing, err := repo.GetActivity(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)

	activity := NewActivity(profile.ID, base.AddDate(0, 0, -2), 45, 7.5, "tempo run")
	require.NoError(t, repo.CreateActivity(ctx, activity))

	stored, err := repo.GetActivity(ctx, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, profile.ID, stored.ProfileID)
	require.True(t, activity.Date.Equal(stored.Date), "date %s != %s", stored.Date, activity.Date)
	require.Equal(t, 45, stored.DurationMin)
	require.InDelta(t, 7.5, stored.DistanceKm, 1e-9)
	require.Equal(t, "tempo run", stored.Comment)

	stored.DurationMin = 50
	stored.Comment = ""
	stored.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, repo.UpdateActivity(ctx, *stored))

	updated, err := repo.GetActivity(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, 50, updated.DurationMin)
	require.Empty(t, updated.Comment)

	require.NoError(t, repo.DeleteActivity(ctx, *updated, time.Now()))
	gone, err := repo.GetActivity(ctx, activity.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func testListOrdersAndFilters(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	profile := NewProfile("dave")
	require.NoError(t, repo.CreateProfile(ctx, profile))

	today := domain.CalendarDate(base)
	fixtures := []domain.Activity{
		NewActivity(profile.ID, today.AddDate(0, 0, -5), 1, 1, "Past 1"),
		NewActivity(profile.ID, today.AddDate(0, 0, 5), 1, 1, "Future"),
		NewActivity(profile.ID, today.AddDate(0, 0, -1), 1, 1, "Yesterday"),
		NewActivity(profile.ID, today.AddDate(0, 0, -5), 1, 1, "Past 2"),
		NewActivity(profile.ID, today, 1, 1, "Today"),
	}
	for _, a := range fixtures {
		require.NoError(t, repo.CreateActivity(ctx, a))
	}

	// Editing must not move an activity within its date.
	edited := fixtures[0]
	edited.Comment = "Past 1"
	edited.DurationMin = 2
	require.NoError(t, repo.UpdateActivity(ctx, edited))

	list, err := repo.ListActivities(ctx, profile.ID, today)
	require.NoError(t, err)
	require.Equal(t, []string{"Today", "Yesterday", "Past 1", "Past 2"}, comments(list))

	none, err := repo.ListActivities(ctx, profile.ID, today.AddDate(0, 0, -10))
	require.NoError(t, err)
	require.Empty(t, none)
}

func testListScopedToProfile(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	erin := NewProfile("erin")
	frank := NewProfile("frank")
	require.NoError(t, repo.CreateProfile(ctx, erin))
	require.NoError(t, repo.CreateProfile(ctx, frank))

	require.NoError(t, repo.CreateActivity(ctx, NewActivity(erin.ID, base.AddDate(0, 0, -1), 30, 5, "erin")))
	require.NoError(t, repo.CreateActivity(ctx, NewActivity(frank.ID, base.AddDate(0, 0, -1), 30, 5, "frank")))

	list, err := repo.ListActivities(ctx, erin.ID, base)
	require.NoError(t, err)
	require.Equal(t, []string{"erin"}, comments(list))
}

func testDeleteProfileCascades(t *testing.T, repo domain.Repository) {
	ctx := context.Background()
	profile := NewProfile("grace")
	require.NoError(t, repo.CreateProfile(ctx, profile))
	activity := NewActivity(profile.ID, base.AddDate(0, 0, -1), 30, 5, "gone soon")
	require.NoError(t, repo.CreateActivity(ctx, activity))

	require.NoError(t, repo.DeleteProfile(ctx, profile.ID, time.Now()))

	stored, err := repo.GetProfileByUser(ctx, "grace")
	require.NoError(t, err)
	require.Nil(t, stored)

	orphan, err := repo.GetActivity(ctx, activity.ID)
	require.NoError(t, err)
	require.Nil(t, orphan)

	// The identity may create a fresh profile afterwards.
	require.NoError(t, repo.CreateProfile(ctx, NewProfile("grace")))
}

func comments(list []domain.Activity) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Comment)
	}
	return out
}
