// Package widget pulls structured plans out of coaching replies and turns them
// into domain values.
package widget

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/nutrition"
	"example.com/coach/internal/quantity"
)

// Kind names a widget payload.
type Kind string

const (
	KindWorkoutPlan   Kind = "workout_plan"
	KindWeeklyPlan    Kind = "weekly_plan"
	KindNutritionPlan Kind = "nutrition_plan"
)

const defaultDayTitle = "Workout"

var (
	// ErrWrongKind is returned when decoding a widget as another kind.
	ErrWrongKind = errors.New("widget kind mismatch")
	// ErrMalformed is returned when a widget payload has an unexpected shape.
	ErrMalformed = errors.New("malformed widget")
)

var fence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Widget is a typed payload attached to a reply.
type Widget struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Extract finds the first fenced JSON block in text. When it decodes into a
// known widget kind, the block is cut from the text and the widget returned.
// Otherwise text is returned unchanged.
func Extract(text string) (string, *Widget) {
	loc := fence.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, nil
	}
	var w Widget
	if err := json.Unmarshal([]byte(text[loc[2]:loc[3]]), &w); err != nil {
		return text, nil
	}
	switch w.Type {
	case KindWorkoutPlan, KindWeeklyPlan, KindNutritionPlan:
	default:
		return text, nil
	}
	return strings.TrimSpace(text[:loc[0]] + text[loc[1]:]), &w
}

// exercise is the loose shape the model produces. Numbers may arrive as
// strings and ids may be missing or numeric.
type exercise struct {
	ID           any            `json:"id"`
	Name         string         `json:"name"`
	Sets         any            `json:"sets"`
	Reps         quantity.Value `json:"reps"`
	Weight       quantity.Value `json:"weight"`
	Technique    string         `json:"technique"`
	Tips         string         `json:"tips"`
	TargetMuscle string         `json:"target_muscle"`
}

func (e exercise) entry() domain.ExerciseEntry {
	var id string
	switch v := e.ID.(type) {
	case string:
		id = v
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return domain.ExerciseEntry{
		ID:           id,
		Name:         e.Name,
		Sets:         quantity.Parse(e.Sets),
		Reps:         e.Reps,
		Weight:       e.Weight,
		Technique:    e.Technique,
		Tips:         e.Tips,
		TargetMuscle: e.TargetMuscle,
	}
}

func entries(in []exercise) []domain.ExerciseEntry {
	out := make([]domain.ExerciseEntry, 0, len(in))
	for _, e := range in {
		out = append(out, e.entry())
	}
	return out
}

// WorkoutPlan decodes a workout_plan widget.
func (w Widget) WorkoutPlan() (domain.WorkoutPlan, error) {
	if w.Type != KindWorkoutPlan {
		return domain.WorkoutPlan{}, fmt.Errorf("%w: %s", ErrWrongKind, w.Type)
	}
	var raw struct {
		Title     string     `json:"title"`
		Duration  string     `json:"duration"`
		Exercises []exercise `json:"exercises"`
	}
	if err := json.Unmarshal(w.Data, &raw); err != nil {
		return domain.WorkoutPlan{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return domain.WorkoutPlan{Title: raw.Title, Duration: raw.Duration, Exercises: entries(raw.Exercises)}, nil
}

// PlanDay is one day of a weekly plan.
type PlanDay struct {
	Day         string                 `json:"day"`
	Focus       string                 `json:"focus"`
	Description string                 `json:"description,omitempty"`
	Exercises   []domain.ExerciseEntry `json:"exercises"`
}

type planDay struct {
	Day         string     `json:"day"`
	Focus       string     `json:"focus"`
	Description string     `json:"description"`
	Exercises   []exercise `json:"exercises"`
}

// WeeklyPlan decodes a weekly_plan widget. The days may be a bare array or
// wrapped in a "plan" or "days" field.
func (w Widget) WeeklyPlan() ([]PlanDay, error) {
	if w.Type != KindWeeklyPlan {
		return nil, fmt.Errorf("%w: %s", ErrWrongKind, w.Type)
	}
	var days []planDay
	if err := json.Unmarshal(w.Data, &days); err != nil {
		var wrapped struct {
			Plan []planDay `json:"plan"`
			Days []planDay `json:"days"`
		}
		if err := json.Unmarshal(w.Data, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch {
		case wrapped.Plan != nil:
			days = wrapped.Plan
		case wrapped.Days != nil:
			days = wrapped.Days
		default:
			return nil, fmt.Errorf("%w: weekly plan is not a list of days", ErrMalformed)
		}
	}

	out := make([]PlanDay, 0, len(days))
	for _, d := range days {
		out = append(out, PlanDay{
			Day:         d.Day,
			Focus:       d.Focus,
			Description: d.Description,
			Exercises:   entries(d.Exercises),
		})
	}
	return out, nil
}

// NutritionTargets decodes a nutrition_plan widget.
func (w Widget) NutritionTargets() (nutrition.Targets, error) {
	if w.Type != KindNutritionPlan {
		return nutrition.Targets{}, fmt.Errorf("%w: %s", ErrWrongKind, w.Type)
	}
	var raw struct {
		Calories any `json:"calories"`
		Protein  any `json:"protein_grams"`
		Fat      any `json:"fat_grams"`
		Carbs    any `json:"carb_grams"`
	}
	if err := json.Unmarshal(w.Data, &raw); err != nil {
		return nutrition.Targets{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nutrition.Targets{
		Calories: quantity.Parse(raw.Calories),
		Protein:  quantity.Parse(raw.Protein),
		Fat:      quantity.Parse(raw.Fat),
		Carbs:    quantity.Parse(raw.Carbs),
	}, nil
}
