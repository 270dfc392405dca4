package widget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/coach/internal/persistence/memory"
)

func TestExtractCutsKnownWidget(t *testing.T) {
	reply := "Here is your session.\n```json\n{\"type\":\"workout_plan\",\"data\":{\"title\":\"Push\",\"exercises\":[{\"name\":\"Bench\",\"sets\":\"4\",\"reps\":\"8-10\",\"weight\":60}]}}\n```\nGood luck!"

	text, w := Extract(reply)
	require.NotNil(t, w)
	require.Equal(t, KindWorkoutPlan, w.Type)
	require.Equal(t, "Here is your session.\n\nGood luck!", text)

	plan, err := w.WorkoutPlan()
	require.NoError(t, err)
	require.Equal(t, "Push", plan.Title)
	require.Len(t, plan.Exercises, 1)
	require.Equal(t, 4, plan.Exercises[0].Sets)
	require.Equal(t, 8, plan.Exercises[0].Reps.Int())
	require.Equal(t, 60, plan.Exercises[0].Weight.Int())
}

func TestExtractIgnoresUnknownOrBrokenBlocks(t *testing.T) {
	for _, reply := range []string{
		"plain text",
		"```json\n{\"type\":\"recipe\",\"data\":{}}\n```",
		"```json\n{not json\n```",
	} {
		text, w := Extract(reply)
		require.Nil(t, w, reply)
		require.Equal(t, reply, text)
	}
}

func TestWeeklyPlanShapes(t *testing.T) {
	for _, data := range []string{
		`[{"day":"Monday","focus":"Chest"}]`,
		`{"plan":[{"day":"Monday","focus":"Chest"}]}`,
		`{"days":[{"day":"Monday","focus":"Chest"}]}`,
	} {
		days, err := Widget{Type: KindWeeklyPlan, Data: []byte(data)}.WeeklyPlan()
		require.NoError(t, err, data)
		require.Len(t, days, 1)
		require.Equal(t, "Chest", days[0].Focus)
	}

	_, err := Widget{Type: KindWeeklyPlan, Data: []byte(`{"week":1}`)}.WeeklyPlan()
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Widget{Type: KindNutritionPlan, Data: []byte(`[]`)}.WeeklyPlan()
	require.ErrorIs(t, err, ErrWrongKind)
}

func TestNutritionTargets(t *testing.T) {
	w := Widget{Type: KindNutritionPlan, Data: []byte(`{"calories":2400,"protein_grams":"160","fat_grams":70,"carb_grams":250}`)}
	targets, err := w.NutritionTargets()
	require.NoError(t, err)
	require.Equal(t, 2400, targets.Calories)
	require.Equal(t, 160, targets.Protein)
	require.Equal(t, 70, targets.Fat)
	require.Equal(t, 250, targets.Carbs)
}

func TestParseWeekday(t *testing.T) {
	cases := map[string]time.Weekday{
		"Monday":            time.Monday,
		" friday ":          time.Friday,
		"Понедельник":       time.Monday,
		"СРЕДА":             time.Wednesday,
		"Воскресенье (7.9)": time.Sunday,
	}
	for name, want := range cases {
		got, ok := ParseWeekday(name)
		require.True(t, ok, name)
		require.Equal(t, want, got, name)
	}
	_, ok := ParseWeekday("someday")
	require.False(t, ok)
}

func TestScheduleDatesTodayCounts(t *testing.T) {
	wednesday := time.Date(2025, time.June, 4, 15, 0, 0, 0, time.UTC)
	workouts := ScheduleDates([]PlanDay{
		{Day: "Wednesday", Focus: "Legs"},
		{Day: "Monday", Focus: "Back"},
		{Day: "Funday", Focus: "Nothing"},
		{Day: "Пятница"},
	}, wednesday)

	require.Len(t, workouts, 3)
	require.Equal(t, time.Date(2025, time.June, 4, 0, 0, 0, 0, time.UTC), workouts[0].Date)
	require.Equal(t, time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC), workouts[1].Date)
	require.Equal(t, time.Date(2025, time.June, 6, 0, 0, 0, 0, time.UTC), workouts[2].Date)
	require.Equal(t, defaultDayTitle, workouts[2].Title)
}

func TestSchedulerAppliesWeeklyPlan(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	s := NewScheduler(repo)
	now := time.Date(2025, time.June, 4, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	w := Widget{Type: KindWeeklyPlan, Data: []byte(`[{"day":"Thursday","focus":"Pull","exercises":[{"name":"Row","sets":3,"reps":12,"weight":"40"}]}]`)}
	applied, err := s.Apply(ctx, "u1", w)
	require.NoError(t, err)
	require.Len(t, applied.Scheduled, 1)

	upcoming, err := s.Upcoming(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	require.Equal(t, "Pull", upcoming[0].Title)
	require.Equal(t, time.Thursday, upcoming[0].Date.Weekday())

	n, err := s.Apply(ctx, "u1", Widget{Type: KindNutritionPlan, Data: []byte(`{"calories":2000}`)})
	require.NoError(t, err)
	require.Equal(t, 2000, n.Targets.Calories)
}
