// Package postgres provides Postgres-backed persistence for profiles, activities and their
// outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/events"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const profileColumns = `profile_id::text, user_id, weight_kg, height_cm, age_years, gender, created_at, updated_at`

const activityColumns = `activity_id::text, profile_id::text, activity_date, duration_min, distance_km, comment, created_at, updated_at`

// Option configures optional behaviour for the Repository.
type Option func(*Repository)

// WithOutbox makes every mutation record its domain event in the outbox table.
func WithOutbox() Option {
	return func(r *Repository) {
		r.outbox = true
	}
}

// Repository implements domain.Repository on a pgx pool.
type Repository struct {
	pool   *pgxpool.Pool
	outbox bool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetProfileByUser implements domain.ProfileRepository.
func (r *Repository) GetProfileByUser(ctx context.Context, userID string) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	profile, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateProfile implements domain.ProfileRepository.
func (r *Repository) CreateProfile(ctx context.Context, profile domain.Profile) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO profiles (profile_id, user_id, weight_kg, height_cm, age_years, gender, created_at, updated_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			profile.ID, profile.UserID, profile.WeightKg, profile.HeightCm, profile.AgeYears, string(profile.Gender), profile.CreatedAt, profile.UpdatedAt,
		)
		if isCode(err, uniqueViolation) {
			return domain.ErrProfileExists
		}
		if err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, events.ProfileCreated, profile.ID, profile.ID, events.NewProfileChanged(profile))
	})
}

// UpdateProfile implements domain.ProfileRepository.
func (r *Repository) UpdateProfile(ctx context.Context, profile domain.Profile) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE profiles SET weight_kg=$2, height_cm=$3, age_years=$4, gender=$5, updated_at=$6 WHERE profile_id=$1`,
			profile.ID, profile.WeightKg, profile.HeightCm, profile.AgeYears, string(profile.Gender), profile.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrProfileNotFound
		}
		return r.insertOutbox(ctx, tx, events.ProfileUpdated, profile.ID, profile.ID, events.NewProfileChanged(profile))
	})
}

// DeleteProfile implements domain.ProfileRepository. Activities are removed by the
// foreign key cascade.
func (r *Repository) DeleteProfile(ctx context.Context, profileID string, deletedAt time.Time) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM profiles WHERE profile_id = $1`, profileID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return r.insertOutbox(ctx, tx, events.ProfileDeleted, profileID, profileID, events.ProfileRemoved{
			ProfileID:  profileID,
			OccurredAt: deletedAt.UTC(),
		})
	})
}

// CreateActivity implements domain.ActivityRepository.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO activities (activity_id, profile_id, activity_date, duration_min, distance_km, comment, created_at, updated_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			activity.ID, activity.ProfileID, activity.Date, activity.DurationMin, activity.DistanceKm, activity.Comment, activity.CreatedAt, activity.UpdatedAt,
		)
		if isCode(err, foreignKeyViolation) {
			return domain.ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, events.ActivityCreated, activity.ID, activity.ProfileID, events.NewActivityChanged(activity))
	})
}

// GetActivity implements domain.ActivityRepository.
func (r *Repository) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id = $1`, activityID)
	activity, err := scanActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// UpdateActivity implements domain.ActivityRepository. The row keeps its seq so the
// activity stays in its insertion slot.
func (r *Repository) UpdateActivity(ctx context.Context, activity domain.Activity) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE activities SET activity_date=$2, duration_min=$3, distance_km=$4, comment=$5, updated_at=$6 WHERE activity_id=$1`,
			activity.ID, activity.Date, activity.DurationMin, activity.DistanceKm, activity.Comment, activity.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrActivityNotFound
		}
		return r.insertOutbox(ctx, tx, events.ActivityUpdated, activity.ID, activity.ProfileID, events.NewActivityChanged(activity))
	})
}

// DeleteActivity implements domain.ActivityRepository.
func (r *Repository) DeleteActivity(ctx context.Context, activity domain.Activity, deletedAt time.Time) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE activity_id = $1`, activity.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return r.insertOutbox(ctx, tx, events.ActivityDeleted, activity.ID, activity.ProfileID, events.ActivityRemoved{
			ActivityID: activity.ID,
			ProfileID:  activity.ProfileID,
			OccurredAt: deletedAt.UTC(),
		})
	})
}

// ListActivities implements domain.ActivityRepository.
func (r *Repository) ListActivities(ctx context.Context, profileID string, until time.Time) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM activities
          WHERE profile_id = $1 AND activity_date <= $2
          ORDER BY activity_date DESC, seq ASC`,
		profileID, domain.CalendarDate(until),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID, partitionKey string, payload interface{}) error {
	if !r.outbox {
		return nil
	}

	route, ok := events.Lookup(eventType)
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		route.AggregateType,
		aggregateID,
		eventType,
		route.Topic,
		route.SchemaSubject,
		partitionKey,
		body,
		fmt.Sprintf("%s:%s:%d", aggregateID, eventType, time.Now().UnixNano()),
	)
	return err
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	var gender string
	if err := row.Scan(&p.ID, &p.UserID, &p.WeightKg, &p.HeightCm, &p.AgeYears, &gender, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Profile{}, err
	}
	p.Gender = domain.Gender(gender)
	return p, nil
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var a domain.Activity
	if err := row.Scan(&a.ID, &a.ProfileID, &a.Date, &a.DurationMin, &a.DistanceKm, &a.Comment, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Activity{}, err
	}
	a.Date = domain.CalendarDate(a.Date)
	return a, nil
}

func isCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
