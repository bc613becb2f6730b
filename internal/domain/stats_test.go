package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.June, 15, 18, 0, 0, 0, time.UTC)

func activityOn(daysFromNow, duration int, distance float64, comment string) Activity {
	return Activity{
		ID:          comment,
		Date:        CalendarDate(now.AddDate(0, 0, daysFromNow)),
		DurationMin: duration,
		DistanceKm:  distance,
		Comment:     comment,
	}
}

func TestDetailCalculatesCaloriesAndTempo(t *testing.T) {
	metrics := Detail(activityOn(-1, 60, 10, "run"), Profile{WeightKg: 40})

	assert.Equal(t, 414, metrics.Calories) // 10 * 40 * 1.036 = 414.4
	assert.Equal(t, 6.0, metrics.Tempo)
}

func TestTempoRoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 6.67, Tempo(20, 3))
	assert.Equal(t, 3.33, Tempo(10, 3))
	assert.Equal(t, 0.0, Tempo(10, 0))
}

func TestEstimateCaloriesRoundsToWholeKilocalories(t *testing.T) {
	// 12.5 * 100 * 1.036 = 1295.0, 0.5 * 35 * 1.036 = 18.13
	assert.Equal(t, 1295, EstimateCalories(12.5, 100))
	assert.Equal(t, 18, EstimateCalories(0.5, 35))
	// 1.25 * 40 * 1.036 = 51.8
	assert.Equal(t, 52, EstimateCalories(1.25, 40))
}

func TestHistoryKeepsPastActivitiesNewestFirst(t *testing.T) {
	input := []Activity{
		activityOn(-5, 1, 1, "Past 1"),
		activityOn(5, 1, 1, "Future"),
		activityOn(0, 1, 1, "Today"),
		activityOn(-5, 1, 1, "Past 2"),
		activityOn(-2, 1, 1, "Recent"),
	}

	got := History(input, now)

	require.Len(t, got, 4)
	assert.Equal(t, "Today", got[0].Comment)
	assert.Equal(t, "Recent", got[1].Comment)
	assert.Equal(t, "Past 1", got[2].Comment)
	assert.Equal(t, "Past 2", got[3].Comment)
	assert.Equal(t, "Past 1", input[0].Comment, "input must not be reordered")
}

func TestHistoryEmpty(t *testing.T) {
	got := History([]Activity{activityOn(5, 1, 1, "Future")}, now)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSummarizeEmptySetHasNoStatistics(t *testing.T) {
	stats, ok := Summarize(Profile{WeightKg: 40}, nil)
	assert.False(t, ok)
	assert.Equal(t, Statistics{}, stats)
}

func TestSummarizeSingleActivity(t *testing.T) {
	stats, ok := Summarize(Profile{WeightKg: 40}, []Activity{activityOn(-5, 60, 10, "Past")})
	require.True(t, ok)

	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 10.0, stats.DistanceKm)
	assert.Equal(t, 60, stats.DurationMin)
	assert.Equal(t, 414, stats.Calories)
	assert.Equal(t, 6.0, stats.AvgTempo)
}

func TestSummarizeDividesTotalsNotAveragesOfPaces(t *testing.T) {
	past := []Activity{
		activityOn(-5, 60, 10, "Past 1"),
		activityOn(-5, 30, 8, "Past 2"),
	}
	stats, ok := Summarize(Profile{WeightKg: 40}, past)
	require.True(t, ok)

	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 18.0, stats.DistanceKm)
	assert.Equal(t, 90, stats.DurationMin)
	assert.Equal(t, 5.0, stats.AvgTempo) // mean of per-activity paces would be 5.875
	// round(414.4) + round(331.52)
	assert.Equal(t, 414+332, stats.Calories)
}

func TestSummarizeRoundsDistanceForDisplayOnly(t *testing.T) {
	past := []Activity{
		activityOn(-1, 10, 1.04, "a"),
		activityOn(-2, 10, 1.04, "b"),
	}
	stats, ok := Summarize(Profile{WeightKg: 50}, past)
	require.True(t, ok)

	assert.Equal(t, 2.1, stats.DistanceKm)
	assert.Equal(t, 9.62, stats.AvgTempo) // 20 / 2.08
}

func TestPastAndFutureOnlyPastCounts(t *testing.T) {
	all := []Activity{
		activityOn(-5, 1, 1, "Past"),
		activityOn(5, 1, 1, "Future"),
	}
	past := History(all, now)
	require.Len(t, past, 1)
	assert.Equal(t, "Past", past[0].Comment)

	stats, ok := Summarize(Profile{WeightKg: 40}, past)
	require.True(t, ok)
	assert.Equal(t, 1, stats.Count)
}

func TestIsPastComparesCalendarDays(t *testing.T) {
	late := time.Date(2024, time.June, 15, 23, 59, 0, 0, time.UTC)
	early := time.Date(2024, time.June, 15, 0, 1, 0, 0, time.UTC)
	today := Activity{Date: CalendarDate(late)}

	assert.True(t, IsPast(today, early))
	assert.False(t, IsPast(Activity{Date: CalendarDate(late.AddDate(0, 0, 1))}, late))
}

func TestDerivedMetricsStayFiniteAtExtremes(t *testing.T) {
	p := Profile{WeightKg: MaxWeightKg}
	heaviest := Activity{DurationMin: MaxDurationMin, DistanceKm: MaxDistanceKm}
	assert.Equal(t, 518000, Detail(heaviest, p).Calories)
	assert.Equal(t, 10.08, Detail(heaviest, p).Tempo)

	// Rows written before the bounds existed must not poison the aggregate.
	legacy := Activity{DurationMin: 60, DistanceKm: 1.7e308}
	assert.Equal(t, math.MaxInt32, EstimateCalories(legacy.DistanceKm, 40))
	assert.Zero(t, EstimateCalories(math.NaN(), 40))

	stats, ok := Summarize(Profile{WeightKg: 40}, []Activity{legacy, legacy})
	require.True(t, ok)
	assert.Equal(t, 2*math.MaxInt32, stats.Calories)
	assert.False(t, math.IsInf(stats.DistanceKm, 0))
	assert.False(t, math.IsNaN(stats.AvgTempo))
	_, err := json.Marshal(stats)
	assert.NoError(t, err)
}

func TestRoundToLeavesHugeValuesAlone(t *testing.T) {
	assert.Equal(t, 1e300, roundTo(1e300, 2))
	assert.Equal(t, 0.0, roundTo(math.Inf(1), 1))
	assert.Equal(t, 3.14, roundTo(3.14159, 2))
}
