package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/quantity"
)

var now = time.Date(2025, time.March, 20, 18, 30, 0, 0, time.UTC)

func TestConsistencyBucketBoundaries(t *testing.T) {
	var dates []time.Time
	for _, ago := range []int{1, 7, 8, 14, 15, 21, 22, 28, 29} {
		dates = append(dates, now.Add(-time.Duration(ago)*24*time.Hour))
	}

	points := Consistency(dates, now)
	require.Len(t, points, 4)
	got := make([]float64, 0, 4)
	for _, p := range points {
		got = append(got, p.Value)
	}
	require.Equal(t, []float64{2, 2, 2, 2}, got)
	require.Equal(t, "Week 1", points[0].Label)
	require.Equal(t, "This week", points[3].Label)
}

func TestConsistencyUsesCeilingOfElapsedDays(t *testing.T) {
	seven := Consistency([]time.Time{now.Add(-7 * 24 * time.Hour)}, now)
	require.Equal(t, float64(1), seven[3].Value)

	justOver := Consistency([]time.Time{now.Add(-7*24*time.Hour - time.Minute)}, now)
	require.Equal(t, float64(0), justOver[3].Value)
	require.Equal(t, float64(1), justOver[2].Value)
}

func TestEmptyInputsProduceEmptyResults(t *testing.T) {
	require.Empty(t, WeightTrend(nil))
	require.Empty(t, VolumeHistory(nil))
	require.Empty(t, Consistency(nil, now))
	require.Nil(t, PersonalBest(nil))
	require.Equal(t, WeeklySummary{}, Weekly(nil, now))
	require.False(t, HasTrend(WeightTrend(nil)))
}

func TestWeightTrendKeepsMostRecentAscending(t *testing.T) {
	series := make([]domain.WeightPoint, 0, 35)
	for i := 34; i >= 0; i-- {
		series = append(series, domain.WeightPoint{Date: now.AddDate(0, 0, -i), Weight: float64(80 - i)})
	}
	// shuffle a little so ordering is not relied upon
	series[0], series[10] = series[10], series[0]

	points := WeightTrend(series)
	require.Len(t, points, WeightTrendLimit)
	require.Equal(t, float64(51), points[0].Value)
	require.Equal(t, float64(80), points[len(points)-1].Value)
	require.Equal(t, "20 Mar", points[len(points)-1].Label)
	require.True(t, HasTrend(points))
	require.False(t, HasTrend(points[:1]))
}

func TestVolumeHistoryKeepsLastTen(t *testing.T) {
	series := make([]domain.VolumePoint, 0, 12)
	for i := 0; i < 12; i++ {
		series = append(series, domain.VolumePoint{Date: now.AddDate(0, 0, i-12), Volume: i * 100, Title: "Push"})
	}
	points := VolumeHistory(series)
	require.Len(t, points, VolumeHistoryLimit)
	require.Equal(t, float64(200), points[0].Value)
	require.Equal(t, float64(1100), points[9].Value)
}

func TestPersonalBestTieGoesToFirst(t *testing.T) {
	sessions := []domain.CompletedSession{
		{Exercises: []domain.ExerciseEntry{
			{Name: "Deadlift", Weight: quantity.Text("140kg"), Completed: true},
			{Name: "Squat", Weight: quantity.Number(200), Completed: false},
		}},
		{Exercises: []domain.ExerciseEntry{
			{Name: "Rack Pull", Weight: quantity.Number(100), ActualWeight: quantity.Text("140"), Completed: true},
		}},
	}
	record := PersonalBest(sessions)
	require.NotNil(t, record)
	require.Equal(t, PersonalRecord{Exercise: "Deadlift", Weight: 140}, *record)
}

func TestPersonalBestNilWithoutPositiveWeight(t *testing.T) {
	sessions := []domain.CompletedSession{{Exercises: []domain.ExerciseEntry{
		{Name: "Push-up", Weight: quantity.Text("bodyweight"), Completed: true},
	}}}
	require.Nil(t, PersonalBest(sessions))
}

func TestWeeklySummary(t *testing.T) {
	sessions := []domain.CompletedSession{
		{Date: now.Add(-24 * time.Hour), Volume: 1000},
		{Date: now.Add(-6 * 24 * time.Hour), Volume: 500},
		{Date: now.Add(-8 * 24 * time.Hour), Volume: 9000},
	}
	require.Equal(t, WeeklySummary{Sessions: 2, Volume: 1500}, Weekly(sessions, now))
}
