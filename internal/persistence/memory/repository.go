// Package memory keeps profiles and activities in process memory for local development
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"example.com/fitlog/internal/domain"
)

// Repository stores profiles and activities in memory. Activities are kept per profile in
// insertion order.
type Repository struct {
	mu         sync.RWMutex
	profiles   map[string]domain.Profile // by profile ID
	byUser     map[string]string         // user ID -> profile ID
	activities map[string][]domain.Activity
	owner      map[string]string // activity ID -> profile ID
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		profiles:   make(map[string]domain.Profile),
		byUser:     make(map[string]string),
		activities: make(map[string][]domain.Activity),
		owner:      make(map[string]string),
	}
}

// GetProfileByUser implements domain.ProfileRepository.
func (r *Repository) GetProfileByUser(ctx context.Context, userID string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUser[userID]
	if !ok {
		return nil, nil
	}
	profile := r.profiles[id]
	return &profile, nil
}

// CreateProfile implements domain.ProfileRepository.
func (r *Repository) CreateProfile(ctx context.Context, profile domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[profile.UserID]; ok {
		return domain.ErrProfileExists
	}
	r.profiles[profile.ID] = profile
	r.byUser[profile.UserID] = profile.ID
	return nil
}

// UpdateProfile implements domain.ProfileRepository.
func (r *Repository) UpdateProfile(ctx context.Context, profile domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profile.ID]; !ok {
		return domain.ErrProfileNotFound
	}
	r.profiles[profile.ID] = profile
	return nil
}

// DeleteProfile implements domain.ProfileRepository and cascades to activities.
func (r *Repository) DeleteProfile(ctx context.Context, profileID string, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.profiles[profileID]
	if !ok {
		return nil
	}
	for _, a := range r.activities[profileID] {
		delete(r.owner, a.ID)
	}
	delete(r.activities, profileID)
	delete(r.byUser, profile.UserID)
	delete(r.profiles, profileID)
	return nil
}

// CreateActivity implements domain.ActivityRepository.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[activity.ProfileID]; !ok {
		return domain.ErrProfileNotFound
	}
	r.activities[activity.ProfileID] = append(r.activities[activity.ProfileID], activity)
	r.owner[activity.ID] = activity.ProfileID
	return nil
}

// GetActivity implements domain.ActivityRepository.
func (r *Repository) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.indexOf(activityID)
	if !ok {
		return nil, nil
	}
	activity := r.activities[r.owner[activityID]][i]
	return &activity, nil
}

// UpdateActivity implements domain.ActivityRepository. The activity keeps its insertion slot.
func (r *Repository) UpdateActivity(ctx context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.indexOf(activity.ID)
	if !ok {
		return domain.ErrActivityNotFound
	}
	r.activities[r.owner[activity.ID]][i] = activity
	return nil
}

// DeleteActivity implements domain.ActivityRepository.
func (r *Repository) DeleteActivity(ctx context.Context, activity domain.Activity, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.indexOf(activity.ID)
	if !ok {
		return nil
	}
	profileID := r.owner[activity.ID]
	list := r.activities[profileID]
	r.activities[profileID] = append(list[:i:i], list[i+1:]...)
	delete(r.owner, activity.ID)
	return nil
}

// ListActivities implements domain.ActivityRepository.
func (r *Repository) ListActivities(ctx context.Context, profileID string, until time.Time) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return domain.History(r.activities[profileID], until), nil
}

func (r *Repository) indexOf(activityID string) (int, bool) {
	profileID, ok := r.owner[activityID]
	if !ok {
		return 0, false
	}
	for i, a := range r.activities[profileID] {
		if a.ID == activityID {
			return i, true
		}
	}
	return 0, false
}
