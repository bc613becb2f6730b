package domain

import "time"

// Gender is the enumerated gender stored on a profile.
type Gender string

const (
	GenderFemale Gender = "Female"
	GenderMale   Gender = "Male"
)

// Profile bounds accepted by the profile form. Both ends are inclusive.
const (
	MinWeightKg = 30
	MaxWeightKg = 500
	MinHeightCm = 100
	MaxHeightCm = 300
	MinAgeYears = 16
	MaxAgeYears = 150
)

// Valid reports whether g is one of the supported genders.
func (g Gender) Valid() bool {
	return g == GenderFemale || g == GenderMale
}

// Profile holds the physical attributes of a single user. A user owns at most one profile.
type Profile struct {
	ID        string
	UserID    string
	WeightKg  int
	HeightCm  int
	AgeYears  int
	Gender    Gender
	CreatedAt time.Time
	UpdatedAt time.Time
}
