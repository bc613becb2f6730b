// Package sqlite stores profiles and activities in a single SQLite file for single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"example.com/fitlog/internal/domain"
)

const timestampLayout = time.RFC3339Nano

const profileColumns = `profile_id, user_id, weight_kg, height_cm, age_years, gender, created_at, updated_at`

const activityColumns = `activity_id, profile_id, activity_date, duration_min, distance_km, comment, created_at, updated_at`

// Repository implements domain.Repository on database/sql with the modernc driver.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies connection settings.
// Migrations are applied separately with RunMigrations.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewRepository wraps an already configured handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	// A single connection keeps the per-connection pragmas in force.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// GetProfileByUser implements domain.ProfileRepository.
func (r *Repository) GetProfileByUser(ctx context.Context, userID string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateProfile implements domain.ProfileRepository.
func (r *Repository) CreateProfile(ctx context.Context, profile domain.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID, profile.UserID, profile.WeightKg, profile.HeightCm, profile.AgeYears, string(profile.Gender),
		formatTime(profile.CreatedAt), formatTime(profile.UpdatedAt),
	)
	if isConstraint(err, "UNIQUE") {
		return domain.ErrProfileExists
	}
	return err
}

// UpdateProfile implements domain.ProfileRepository.
func (r *Repository) UpdateProfile(ctx context.Context, profile domain.Profile) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET weight_kg = ?, height_cm = ?, age_years = ?, gender = ?, updated_at = ? WHERE profile_id = ?`,
		profile.WeightKg, profile.HeightCm, profile.AgeYears, string(profile.Gender), formatTime(profile.UpdatedAt), profile.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrProfileNotFound)
}

// DeleteProfile implements domain.ProfileRepository. Activities are removed by the
// foreign key cascade.
func (r *Repository) DeleteProfile(ctx context.Context, profileID string, deletedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE profile_id = ?`, profileID)
	return err
}

// CreateActivity implements domain.ActivityRepository.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activities (`+activityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		activity.ID, activity.ProfileID, activity.Date.Format(domain.DateLayout), activity.DurationMin, activity.DistanceKm,
		activity.Comment, formatTime(activity.CreatedAt), formatTime(activity.UpdatedAt),
	)
	if isConstraint(err, "FOREIGN KEY") {
		return domain.ErrProfileNotFound
	}
	return err
}

// GetActivity implements domain.ActivityRepository.
func (r *Repository) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id = ?`, activityID)
	activity, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

// UpdateActivity implements domain.ActivityRepository. The row keeps its seq.
func (r *Repository) UpdateActivity(ctx context.Context, activity domain.Activity) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE activities SET activity_date = ?, duration_min = ?, distance_km = ?, comment = ?, updated_at = ? WHERE activity_id = ?`,
		activity.Date.Format(domain.DateLayout), activity.DurationMin, activity.DistanceKm, activity.Comment,
		formatTime(activity.UpdatedAt), activity.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrActivityNotFound)
}

// DeleteActivity implements domain.ActivityRepository.
func (r *Repository) DeleteActivity(ctx context.Context, activity domain.Activity, deletedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE activity_id = ?`, activity.ID)
	return err
}

// ListActivities implements domain.ActivityRepository.
func (r *Repository) ListActivities(ctx context.Context, profileID string, until time.Time) ([]domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities
          WHERE profile_id = ? AND activity_date <= ?
          ORDER BY activity_date DESC, seq ASC`,
		profileID, domain.CalendarDate(until).Format(domain.DateLayout),
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
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (domain.Profile, error) {
	var (
		p                domain.Profile
		gender           string
		created, updated string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.WeightKg, &p.HeightCm, &p.AgeYears, &gender, &created, &updated); err != nil {
		return domain.Profile{}, err
	}
	p.Gender = domain.Gender(gender)
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.Profile{}, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

func scanActivity(row scanner) (domain.Activity, error) {
	var (
		a                      domain.Activity
		date, created, updated string
	)
	if err := row.Scan(&a.ID, &a.ProfileID, &date, &a.DurationMin, &a.DistanceKm, &a.Comment, &created, &updated); err != nil {
		return domain.Activity{}, err
	}
	d, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("parsing activity_date %q: %w", date, err)
	}
	a.Date = d
	if a.CreatedAt, err = parseTime(created); err != nil {
		return domain.Activity{}, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Activity{}, err
	}
	return a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", raw, err)
	}
	return t, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// isConstraint matches SQLite constraint failures by message, e.g.
// "constraint failed: UNIQUE constraint failed: profiles.user_id".
func isConstraint(err error, kind string) bool {
	return err != nil && strings.Contains(err.Error(), kind+" constraint failed")
}
