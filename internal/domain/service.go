// Package domain defines the business logic for profiles, activities and their statistics.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/fitlog/internal/observability"
)

var (
	// ErrAnonymous is returned when an operation needs an authenticated identity.
	ErrAnonymous = errors.New("authenticated identity required")
	// ErrProfileNotFound signals that the identity has not created a profile yet.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists is returned when a second profile is created for the same identity.
	ErrProfileExists = errors.New("profile already exists")
	// ErrActivityNotFound covers both missing activities and activities owned by another
	// profile.
	ErrActivityNotFound = errors.New("activity not found")
)

// ProfileRepository captures profile persistence. Lookups return nil, nil when no row exists.
type ProfileRepository interface {
	GetProfileByUser(ctx context.Context, userID string) (*Profile, error)
	CreateProfile(ctx context.Context, profile Profile) error
	UpdateProfile(ctx context.Context, profile Profile) error
	// DeleteProfile removes the profile and every activity it owns. deletedAt stamps any
	// event recorded for the removal.
	DeleteProfile(ctx context.Context, profileID string, deletedAt time.Time) error
}

// ActivityRepository captures activity persistence. Lookups return nil, nil when no row exists.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	GetActivity(ctx context.Context, activityID string) (*Activity, error)
	UpdateActivity(ctx context.Context, activity Activity) error
	DeleteActivity(ctx context.Context, activity Activity, deletedAt time.Time) error
	// ListActivities returns the profile's activities dated on or before until, newest
	// date first and insertion order within a date.
	ListActivities(ctx context.Context, profileID string, until time.Time) ([]Activity, error)
}

// Repository is the full persistence contract consumed by Service.
type Repository interface {
	ProfileRepository
	ActivityRepository
}

// ActivityDetail pairs an activity with its derived metrics.
type ActivityDetail struct {
	Activity Activity
	Metrics  ActivityMetrics
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps and the default history cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger overrides the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

// Service orchestrates profile and activity workflows.
type Service struct {
	repo Repository
	now  func() time.Time
	log  zerolog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		now:  time.Now,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Profile returns the profile linked to userID.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrAnonymous
	}
	profile, err := s.repo.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// HasProfile reports whether userID has completed the profile step.
func (s *Service) HasProfile(ctx context.Context, userID string) (bool, error) {
	_, err := s.Profile(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrAnonymous):
		return false, nil
	default:
		return false, err
	}
}

// CreateProfile links a new profile to userID. A second call for the same identity fails
// with ErrProfileExists.
func (s *Service) CreateProfile(ctx context.Context, userID string, input ProfileInput) (*Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrAnonymous
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if existing != nil {
		return nil, ErrProfileExists
	}

	now := s.now().UTC()
	profile := Profile{
		ID:        uuid.NewString(),
		UserID:    userID,
		WeightKg:  input.WeightKg,
		HeightCm:  input.HeightCm,
		AgeYears:  input.AgeYears,
		Gender:    input.Gender,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, ErrProfileExists) {
			return nil, err
		}
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	observability.RecordProfileMutation("create")
	s.log.Info().Str("profile_id", profile.ID).Msg("profile created")
	return &profile, nil
}

// UpdateProfile replaces the physical attributes of the caller's profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*Profile, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	profile.WeightKg = input.WeightKg
	profile.HeightCm = input.HeightCm
	profile.AgeYears = input.AgeYears
	profile.Gender = input.Gender
	profile.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateProfile(ctx, *profile); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	observability.RecordProfileMutation("update")
	return profile, nil
}

// DeleteProfile removes the caller's profile together with its activities.
func (s *Service) DeleteProfile(ctx context.Context, userID string) error {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProfile(ctx, profile.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	observability.RecordProfileMutation("delete")
	s.log.Info().Str("profile_id", profile.ID).Msg("profile deleted")
	return nil
}

// CreateActivity validates input and records it for the caller's profile.
func (s *Service) CreateActivity(ctx context.Context, userID string, input ActivityInput) (*ActivityDetail, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	activity := Activity{
		ID:          uuid.NewString(),
		ProfileID:   profile.ID,
		Date:        CalendarDate(input.Date),
		DurationMin: input.DurationMin,
		DistanceKm:  input.DistanceKm,
		Comment:     input.Comment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("creating activity: %w", err)
	}

	observability.RecordActivityMutation("create")
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return &ActivityDetail{Activity: activity, Metrics: Detail(activity, *profile)}, nil
}

// GetActivity returns one of the caller's activities with its derived metrics.
func (s *Service) GetActivity(ctx context.Context, userID, activityID string) (*ActivityDetail, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	activity, err := s.ownedActivity(ctx, profile, activityID)
	if err != nil {
		return nil, err
	}
	return &ActivityDetail{Activity: *activity, Metrics: Detail(*activity, *profile)}, nil
}

// UpdateActivity replaces the fields of one of the caller's activities.
func (s *Service) UpdateActivity(ctx context.Context, userID, activityID string, input ActivityInput) (*ActivityDetail, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	activity, err := s.ownedActivity(ctx, profile, activityID)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	activity.Date = CalendarDate(input.Date)
	activity.DurationMin = input.DurationMin
	activity.DistanceKm = input.DistanceKm
	activity.Comment = input.Comment
	activity.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateActivity(ctx, *activity); err != nil {
		return nil, fmt.Errorf("updating activity: %w", err)
	}

	observability.RecordActivityMutation("update")
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return &ActivityDetail{Activity: *activity, Metrics: Detail(*activity, *profile)}, nil
}

// DeleteActivity removes one of the caller's activities.
func (s *Service) DeleteActivity(ctx context.Context, userID, activityID string) error {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	activity, err := s.ownedActivity(ctx, profile, activityID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteActivity(ctx, *activity, s.now().UTC()); err != nil {
		return fmt.Errorf("deleting activity: %w", err)
	}
	observability.RecordActivityMutation("delete")
	return nil
}

// History lists the caller's activities dated on or before asOf, newest first. A zero asOf
// means now. An empty slice is a normal result.
func (s *Service) History(ctx context.Context, userID string, asOf time.Time) ([]Activity, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.history(ctx, profile, asOf)
}

// Statistics aggregates the caller's past activities. The boolean is false when there are
// none yet.
func (s *Service) Statistics(ctx context.Context, userID string, asOf time.Time) (Statistics, bool, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return Statistics{}, false, err
	}
	past, err := s.history(ctx, profile, asOf)
	if err != nil {
		return Statistics{}, false, err
	}
	stats, ok := Summarize(*profile, past)
	observability.RecordStatistics(ok)
	return stats, ok, nil
}

func (s *Service) history(ctx context.Context, profile *Profile, asOf time.Time) ([]Activity, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	activities, err := s.repo.ListActivities(ctx, profile.ID, CalendarDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	return History(activities, asOf), nil
}

// ownedActivity loads activityID and hides it unless profile owns it.
func (s *Service) ownedActivity(ctx context.Context, profile *Profile, activityID string) (*Activity, error) {
	if _, err := uuid.Parse(activityID); err != nil {
		return nil, ErrActivityNotFound
	}
	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("loading activity: %w", err)
	}
	if activity == nil || activity.ProfileID != profile.ID {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}
