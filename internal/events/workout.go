// Package events defines the payloads published through the outbox.
package events

import "time"

// Event types.
const (
	TypeWorkoutCompleted = "workout.completed"
	TypeWorkoutDeleted   = "workout.deleted"
)

// WorkoutCompleted is emitted whenever a session is upserted into history.
// Replaced reports whether an earlier session of the same day and title was
// overwritten.
type WorkoutCompleted struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	PerformedAt  time.Time `json:"performed_at"`
	Volume       int       `json:"volume"`
	RPE          int       `json:"rpe"`
	Exercises    int       `json:"exercises"`
	Completed    int       `json:"completed"`
	AllCompleted bool      `json:"all_completed"`
	Replaced     bool      `json:"replaced"`
}

// WorkoutDeleted is emitted when a session is removed from history.
type WorkoutDeleted struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
