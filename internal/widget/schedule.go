package widget

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/nutrition"
)

var weekdays = map[string]time.Weekday{
	"sunday":      time.Sunday,
	"monday":      time.Monday,
	"tuesday":     time.Tuesday,
	"wednesday":   time.Wednesday,
	"thursday":    time.Thursday,
	"friday":      time.Friday,
	"saturday":    time.Saturday,
	"воскресенье": time.Sunday,
	"понедельник": time.Monday,
	"вторник":     time.Tuesday,
	"среда":       time.Wednesday,
	"четверг":     time.Thursday,
	"пятница":     time.Friday,
	"суббота":     time.Saturday,
}

// ParseWeekday resolves an English or Russian day name. Trailing text such as
// "Monday (3.3)" is ignored.
func ParseWeekday(name string) (time.Weekday, bool) {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(fields) == 0 {
		return 0, false
	}
	d, ok := weekdays[fields[0]]
	return d, ok
}

// NextDate returns the next calendar day falling on d. Today counts.
func NextDate(d time.Weekday, today time.Time) time.Time {
	today = domain.CalendarDay(today)
	return today.AddDate(0, 0, (int(d)+7-int(today.Weekday()))%7)
}

// ScheduleDates maps each plan day to its next date. Days with an unknown
// name are skipped.
func ScheduleDates(days []PlanDay, today time.Time) []domain.ScheduledWorkout {
	out := make([]domain.ScheduledWorkout, 0, len(days))
	for _, d := range days {
		wd, ok := ParseWeekday(d.Day)
		if !ok {
			continue
		}
		title := strings.TrimSpace(d.Focus)
		if title == "" {
			title = defaultDayTitle
		}
		out = append(out, domain.ScheduledWorkout{
			Date:  NextDate(wd, today),
			Title: title,
			Plan:  &domain.WorkoutPlan{Title: title, Exercises: d.Exercises},
		})
	}
	return out
}

// Applied reports what Apply did with a widget.
type Applied struct {
	Kind      Kind                      `json:"kind"`
	Scheduled []domain.ScheduledWorkout `json:"scheduled,omitempty"`
	Plan      *domain.WorkoutPlan       `json:"plan,omitempty"`
	Targets   *nutrition.Targets        `json:"targets,omitempty"`
}

// Scheduler writes plan widgets to the workout schedule.
type Scheduler struct {
	repo domain.ScheduleRepository
	now  func() time.Time
}

// NewScheduler constructs a Scheduler.
func NewScheduler(repo domain.ScheduleRepository) *Scheduler {
	return &Scheduler{repo: repo, now: time.Now}
}

// Apply schedules a workout_plan for today and a weekly_plan on its weekdays.
// Nutrition plans are decoded and returned without being stored.
func (s *Scheduler) Apply(ctx context.Context, userID string, w Widget) (Applied, error) {
	applied := Applied{Kind: w.Type}
	today := domain.CalendarDay(s.now())

	switch w.Type {
	case KindWorkoutPlan:
		plan, err := w.WorkoutPlan()
		if err != nil {
			return applied, err
		}
		title := plan.Title
		if title == "" {
			title = defaultDayTitle
		}
		applied.Plan = &plan
		applied.Scheduled = []domain.ScheduledWorkout{{Date: today, Title: title, Plan: &plan}}
	case KindWeeklyPlan:
		days, err := w.WeeklyPlan()
		if err != nil {
			return applied, err
		}
		applied.Scheduled = ScheduleDates(days, today)
	case KindNutritionPlan:
		targets, err := w.NutritionTargets()
		if err != nil {
			return applied, err
		}
		applied.Targets = &targets
		return applied, nil
	default:
		return applied, fmt.Errorf("%w: %s", ErrWrongKind, w.Type)
	}

	if len(applied.Scheduled) == 0 {
		return applied, nil
	}
	if err := s.repo.ReplaceSchedule(ctx, userID, applied.Scheduled); err != nil {
		return applied, fmt.Errorf("replace schedule: %w", err)
	}
	return applied, nil
}

// UpcomingWindow is how far ahead Upcoming looks.
const UpcomingWindow = 14 * 24 * time.Hour

// Upcoming lists the workouts still to do from today through UpcomingWindow.
func (s *Scheduler) Upcoming(ctx context.Context, userID string) ([]domain.ScheduledWorkout, error) {
	today := domain.CalendarDay(s.now())
	return s.repo.Upcoming(ctx, userID, today, today.Add(UpcomingWindow))
}
