package progress

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/persistence/memory"
	"example.com/coach/internal/quantity"
	"example.com/coach/internal/stats"
)

type failingRepo struct{ err error }

func (f failingRepo) FetchHistory(context.Context, string) ([]domain.CompletedSession, error) {
	return nil, f.err
}

func (f failingRepo) VolumeSeries(context.Context, string, int) ([]domain.VolumePoint, error) {
	return nil, f.err
}

func (f failingRepo) SessionsSince(context.Context, string, time.Time) ([]domain.CompletedSession, error) {
	return nil, f.err
}

func (f failingRepo) WeightSeries(context.Context, string, int) ([]domain.WeightPoint, error) {
	return nil, f.err
}

func (f failingRepo) Upcoming(context.Context, string, time.Time, time.Time) ([]domain.ScheduledWorkout, error) {
	return nil, f.err
}

func completed(name string, sets int, reps, weight float64) domain.ExerciseEntry {
	return domain.ExerciseEntry{Name: name, Sets: sets, Reps: quantity.Number(reps), Weight: quantity.Number(weight), Completed: true}
}

func seed(t *testing.T, repo *memory.Repository, now time.Time) {
	t.Helper()
	ctx := context.Background()
	sessions := []domain.CompletedSession{
		{UserID: "u1", Date: now.AddDate(0, 0, -2), Title: "Push", Exercises: []domain.ExerciseEntry{completed("Bench", 3, 10, 60)}},
		{UserID: "u1", Date: now.AddDate(0, 0, -9), Title: "Legs", Exercises: []domain.ExerciseEntry{completed("Squat", 5, 5, 100)}},
		{UserID: "u1", Date: now.AddDate(0, 0, -40), Title: "Pull", Exercises: []domain.ExerciseEntry{completed("Deadlift", 1, 3, 100)}},
	}
	for _, s := range sessions {
		s.Volume = domain.Volume(s.Exercises)
		_, err := repo.UpsertSession(ctx, s)
		require.NoError(t, err)
	}
	for i, w := range []float64{84, 83.4} {
		require.NoError(t, repo.UpsertBodyMeasurement(ctx, domain.BodyMeasurement{UserID: "u1", Date: now.AddDate(0, 0, i-1), Weight: w}))
	}
}

func TestOverview(t *testing.T) {
	now := time.Date(2025, time.May, 20, 12, 0, 0, 0, time.UTC)
	repo := memory.NewRepository()
	seed(t, repo, now)
	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	o := svc.Overview(context.Background(), "u1")
	require.Len(t, o.Weight, 2)
	require.True(t, o.HasWeightTrend)
	require.Len(t, o.Volume, 3)
	require.Equal(t, float64(1800), o.Volume[2].Value)
	require.Equal(t, []float64{0, 0, 1, 1}, values(o.Consistency))
	require.Equal(t, "Squat", o.Record.Exercise)
	require.Equal(t, 100, o.Record.Weight)
	require.Equal(t, 1, o.Weekly.Sessions)
	require.Equal(t, 1800, o.Weekly.Volume)
}

func TestReadFailuresDegradeToEmpty(t *testing.T) {
	svc := NewService(failingRepo{err: errors.New("timeout")})

	charts := svc.Charts(context.Background(), "u1")
	require.NotNil(t, charts.Weight)
	require.Empty(t, charts.Weight)
	require.False(t, charts.HasWeightTrend)
	require.Empty(t, charts.Volume)
	require.Empty(t, charts.Consistency)
	require.Nil(t, svc.PersonalRecord(context.Background(), "u1"))
	require.Zero(t, svc.WeeklySummary(context.Background(), "u1").Sessions)
}

func TestCoachingContext(t *testing.T) {
	now := time.Date(2025, time.May, 20, 12, 0, 0, 0, time.UTC)
	repo := memory.NewRepository()
	seed(t, repo, now)
	require.NoError(t, repo.ReplaceSchedule(context.Background(), "u1", []domain.ScheduledWorkout{
		{Date: now.AddDate(0, 0, 1), Title: "Back", Plan: &domain.WorkoutPlan{Exercises: []domain.ExerciseEntry{{Name: "Row"}}}},
	}))
	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	text := svc.CoachingContext(context.Background(), "u1")
	require.Contains(t, text, "Current weight: 83.4kg (start: 84kg)")
	require.Contains(t, text, "Workouts this week: 1")
	require.Contains(t, text, "[2025-05-18] Push: Bench (60kg x 10)")
	require.Contains(t, text, "[2025-05-21] Back: Row")
	require.Contains(t, text, "Personal record: Squat 100kg")
}

func TestCoachingContextWithoutData(t *testing.T) {
	svc := NewService(failingRepo{err: errors.New("down")})
	text := svc.CoachingContext(context.Background(), "u1")
	require.True(t, strings.HasPrefix(text, "STATS:\n- Current weight: unknown"))
	require.Contains(t, text, "No sessions yet.")
	require.Contains(t, text, "No workouts scheduled.")
}

func values(points []stats.Point) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		out = append(out, p.Value)
	}
	return out
}
