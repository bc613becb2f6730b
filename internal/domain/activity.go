package domain

import "time"

// Activity bounds. MaxDurationMin is one week; MaxDistanceKm keeps derived calories
// and tempo well inside int and float64 range.
const (
	MaxCommentLength = 120
	MaxDurationMin   = 10080
	MaxDistanceKm    = 1000.0
)

// DateLayout is the canonical calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Activity is a single logged exercise session. Date carries no time of day and is kept
// at UTC midnight.
type Activity struct {
	ID          string
	ProfileID   string
	Date        time.Time
	DurationMin int
	DistanceKm  float64
	Comment     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CalendarDate truncates t to midnight UTC of its UTC calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
