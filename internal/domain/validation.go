package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every field that failed validation. Nothing is persisted
// when one is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field has at least one error.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) addf(field, format string, args ...any) {
	e.add(field, fmt.Sprintf(format, args...))
}

func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ActivityInput is a typed activity payload.
type ActivityInput struct {
	Date        time.Time
	DurationMin int
	DistanceKm  float64
	Comment     string
}

// Validate checks the activity constraints on an already typed payload.
func (in ActivityInput) Validate() error {
	verr := &ValidationError{}
	in.check(verr, true, true, true)
	return verr.err()
}

func (in ActivityInput) check(verr *ValidationError, date, duration, distance bool) {
	if date && in.Date.IsZero() {
		verr.add("date", "is required")
	}
	switch {
	case !duration:
	case in.DurationMin <= 0:
		verr.add("duration", "must be greater than 0")
	case in.DurationMin > MaxDurationMin:
		verr.addf("duration", "must be at most %d", MaxDurationMin)
	}
	switch {
	case !distance:
	case in.DistanceKm <= 0 || math.IsNaN(in.DistanceKm) || math.IsInf(in.DistanceKm, 0):
		verr.add("distance", "must be a number greater than 0")
	case in.DistanceKm > MaxDistanceKm:
		verr.addf("distance", "must be at most %g", MaxDistanceKm)
	}
	if n := utf8.RuneCountInString(in.Comment); n > MaxCommentLength {
		verr.addf("comment", "must be at most %d characters (it has %d)", MaxCommentLength, n)
	}
}

// ActivityForm is a raw activity submission where every field is still text, the way it
// arrives from a form post or a loosely typed JSON body.
type ActivityForm struct {
	Date     string
	Duration string
	Distance string
	Comment  string
}

// Parse converts the form into an ActivityInput, reporting every offending field at once.
// Comment is optional.
func (f ActivityForm) Parse() (ActivityInput, error) {
	verr := &ValidationError{}
	var in ActivityInput

	dateOK, durationOK, distanceOK := false, false, false
	if d, msg := parseDate(f.Date); msg != "" {
		verr.add("date", msg)
	} else {
		in.Date, dateOK = d, true
	}
	if n, msg := parseWholeNumber(f.Duration); msg != "" {
		verr.add("duration", msg)
	} else {
		in.DurationMin, durationOK = n, true
	}
	if x, msg := parseDecimal(f.Distance); msg != "" {
		verr.add("distance", msg)
	} else {
		in.DistanceKm, distanceOK = x, true
	}
	in.Comment = strings.TrimSpace(f.Comment)

	in.check(verr, dateOK, durationOK, distanceOK)
	if err := verr.err(); err != nil {
		return ActivityInput{}, err
	}
	return in, nil
}

// ProfileInput is a typed profile payload.
type ProfileInput struct {
	WeightKg int
	HeightCm int
	AgeYears int
	Gender   Gender
}

// Validate checks the profile bounds. Minimums are inclusive.
func (in ProfileInput) Validate() error {
	verr := &ValidationError{}
	in.check(verr, true, true, true, true)
	return verr.err()
}

func (in ProfileInput) check(verr *ValidationError, weight, height, age, gender bool) {
	if weight {
		checkRange(verr, "weight", in.WeightKg, MinWeightKg, MaxWeightKg)
	}
	if height {
		checkRange(verr, "height", in.HeightCm, MinHeightCm, MaxHeightCm)
	}
	if age {
		checkRange(verr, "age", in.AgeYears, MinAgeYears, MaxAgeYears)
	}
	if gender && !in.Gender.Valid() {
		verr.addf("gender", "must be one of %s, %s", GenderFemale, GenderMale)
	}
}

func checkRange(verr *ValidationError, field string, v, lo, hi int) {
	switch {
	case v < lo:
		verr.addf(field, "must be at least %d", lo)
	case v > hi:
		verr.addf(field, "must be at most %d", hi)
	}
}

// ProfileForm is a raw profile submission.
type ProfileForm struct {
	Weight string
	Height string
	Age    string
	Gender string
}

// Parse converts the form into a ProfileInput, reporting every offending field at once.
func (f ProfileForm) Parse() (ProfileInput, error) {
	verr := &ValidationError{}
	var in ProfileInput

	weightOK, heightOK, ageOK := false, false, false
	if n, msg := parseWholeNumber(f.Weight); msg != "" {
		verr.add("weight", msg)
	} else {
		in.WeightKg, weightOK = n, true
	}
	if n, msg := parseWholeNumber(f.Height); msg != "" {
		verr.add("height", msg)
	} else {
		in.HeightCm, heightOK = n, true
	}
	if n, msg := parseWholeNumber(f.Age); msg != "" {
		verr.add("age", msg)
	} else {
		in.AgeYears, ageOK = n, true
	}

	gender := strings.TrimSpace(f.Gender)
	genderOK := false
	if gender == "" {
		verr.add("gender", "is required")
	} else {
		in.Gender, genderOK = Gender(gender), true
	}

	in.check(verr, weightOK, heightOK, ageOK, genderOK)
	if err := verr.err(); err != nil {
		return ProfileInput{}, err
	}
	return in, nil
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

func parseDate(raw string) (time.Time, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, "is required"
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return CalendarDate(t), ""
		}
	}
	return time.Time{}, "must be a valid date (YYYY-MM-DD)"
}

func parseWholeNumber(raw string) (int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "is required"
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, "must be a whole number"
	}
	return n, ""
}

func parseDecimal(raw string) (float64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "is required"
	}
	x, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, "must be a number"
	}
	return x, ""
}

// ParseAsOf parses an optional history cutoff. An empty value yields the zero time,
// which the service treats as now.
func ParseAsOf(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	t, msg := parseDate(raw)
	if msg != "" {
		verr := &ValidationError{}
		verr.add("as_of", msg)
		return time.Time{}, verr
	}
	return t, nil
}
