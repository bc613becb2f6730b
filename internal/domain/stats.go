package domain

import (
	"math"
	"sort"
	"time"
)

// CalorieCoefficient is the kcal burned per kilogram of body weight per kilometre.
const CalorieCoefficient = 1.036

// ActivityMetrics are the values derived for a single activity.
type ActivityMetrics struct {
	Calories int
	Tempo    float64 // minutes per kilometre, two decimals
}

// Statistics aggregates a profile's past activities.
type Statistics struct {
	Count       int
	Calories    int
	DistanceKm  float64 // one decimal
	DurationMin int
	AvgTempo    float64 // total duration over total distance, two decimals
}

// maxCalories bounds a single estimate so sums over a history cannot overflow int.
const maxCalories = math.MaxInt32

// EstimateCalories applies the linear calorie model, rounding half away from zero.
// Results outside [0, maxCalories] are clamped and a non-finite input yields 0; validated
// activities never reach either case.
func EstimateCalories(distanceKm float64, weightKg int) int {
	kcal := math.Round(distanceKm * float64(weightKg) * CalorieCoefficient)
	switch {
	case math.IsNaN(kcal) || kcal <= 0:
		return 0
	case kcal >= maxCalories:
		return maxCalories
	}
	return int(kcal)
}

// Tempo returns minutes per kilometre rounded to two decimals. A non-positive distance
// yields 0.
func Tempo(durationMin int, distanceKm float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return roundTo(float64(durationMin)/distanceKm, 2)
}

// Detail computes the per-activity calories and tempo using the owner's weight.
func Detail(a Activity, p Profile) ActivityMetrics {
	return ActivityMetrics{
		Calories: EstimateCalories(a.DistanceKm, p.WeightKg),
		Tempo:    Tempo(a.DurationMin, a.DistanceKm),
	}
}

// IsPast reports whether the activity's calendar date is not after asOf's calendar date.
func IsPast(a Activity, asOf time.Time) bool {
	return !CalendarDate(a.Date).After(CalendarDate(asOf))
}

// History returns the activities dated on or before asOf, newest first. Activities that
// share a date keep their relative input order, so callers pass them in insertion order.
func History(activities []Activity, asOf time.Time) []Activity {
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if IsPast(a, asOf) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// Summarize aggregates past activities for p. The boolean is false when there is nothing
// to aggregate, in which case no numeric field is computed.
func Summarize(p Profile, past []Activity) (Statistics, bool) {
	if len(past) == 0 {
		return Statistics{}, false
	}

	var stats Statistics
	var distance float64
	for _, a := range past {
		stats.Count++
		stats.DurationMin += a.DurationMin
		stats.Calories += EstimateCalories(a.DistanceKm, p.WeightKg)
		distance += a.DistanceKm
	}
	stats.DistanceKm = roundTo(distance, 1)
	if distance > 0 {
		stats.AvgTempo = roundTo(float64(stats.DurationMin)/distance, 2)
	}
	return stats, true
}

// roundTo rounds x to places decimals. Values too large to carry a fractional part
// are returned as is, and non-finite values become 0 so they can always be encoded.
func roundTo(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	scaled := x * math.Pow(10, float64(places))
	if math.IsInf(scaled, 0) || math.Abs(scaled) >= 1<<53 {
		return x
	}
	return math.Round(scaled) / math.Pow(10, float64(places))
}
