package domain

import (
	"time"

	"example.com/coach/internal/quantity"
)

// ExerciseEntry is one prescribed exercise within a session together with what
// was actually performed. Prescribed fields never change after the entry is
// created; tracking only touches Completed and the Actual* fields.
type ExerciseEntry struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Sets         int            `json:"sets"`
	Reps         quantity.Value `json:"reps"`
	Weight       quantity.Value `json:"weight"`
	Completed    bool           `json:"completed"`
	Technique    string         `json:"technique,omitempty"`
	Tips         string         `json:"tips,omitempty"`
	TargetMuscle string         `json:"target_muscle,omitempty"`
	ActualSets   *int           `json:"actual_sets,omitempty"`
	ActualReps   quantity.Value `json:"actual_reps,omitzero"`
	ActualWeight quantity.Value `json:"actual_weight,omitzero"`
}

// EffectiveSets returns the performed sets, or the prescribed sets when none
// were recorded.
func (e ExerciseEntry) EffectiveSets() int {
	if e.ActualSets != nil && *e.ActualSets != 0 {
		return *e.ActualSets
	}
	return e.Sets
}

// EffectiveReps parses the performed reps, falling back to the prescription.
func (e ExerciseEntry) EffectiveReps() int {
	return e.ActualReps.Or(e.Reps).Int()
}

// EffectiveWeight parses the performed weight, falling back to the prescription.
func (e ExerciseEntry) EffectiveWeight() int {
	return e.ActualWeight.Or(e.Weight).Int()
}

// WithActualDefaults copies the prescription into any absent Actual* field.
func (e ExerciseEntry) WithActualDefaults() ExerciseEntry {
	if e.ActualSets == nil {
		sets := e.Sets
		e.ActualSets = &sets
	}
	if e.ActualReps.IsZero() {
		e.ActualReps = e.Reps
	}
	if e.ActualWeight.IsZero() {
		e.ActualWeight = e.Weight
	}
	return e
}

// Clone returns a deep copy of the entry.
func (e ExerciseEntry) Clone() ExerciseEntry {
	if e.ActualSets != nil {
		sets := *e.ActualSets
		e.ActualSets = &sets
	}
	return e
}

// CloneEntries deep-copies a slice of entries.
func CloneEntries(entries []ExerciseEntry) []ExerciseEntry {
	if entries == nil {
		return nil
	}
	out := make([]ExerciseEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry.Clone()
	}
	return out
}

// WorkoutPlan is the prescription issued by the coaching model.
type WorkoutPlan struct {
	Title     string          `json:"title"`
	Duration  string          `json:"duration"`
	Exercises []ExerciseEntry `json:"exercises"`
}

// CompletedSession is an immutable history record.
type CompletedSession struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Date      time.Time       `json:"date"`
	Title     string          `json:"title"`
	Duration  string          `json:"duration"`
	Exercises []ExerciseEntry `json:"exercises"`
	Volume    int             `json:"volume"`
	RPE       int             `json:"rpe"`
}

// AllCompleted reports whether every entry of the session was ticked off.
func (s CompletedSession) AllCompleted() bool {
	for _, entry := range s.Exercises {
		if !entry.Completed {
			return false
		}
	}
	return true
}

// CalendarDay truncates t to midnight UTC. Day-level natural keys use it.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return CalendarDay(a).Equal(CalendarDay(b))
}
