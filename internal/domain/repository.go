package domain

import (
	"context"
	"time"
)

// SessionRepository persists completed sessions. Upserts use the calendar day
// and title as the natural key.
type SessionRepository interface {
	UpsertSession(ctx context.Context, session CompletedSession) (CompletedSession, error)
	FetchHistory(ctx context.Context, userID string) ([]CompletedSession, error)
	ListSessions(ctx context.Context, userID string, cursor *Cursor, limit int) ([]CompletedSession, *Cursor, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	VolumeSeries(ctx context.Context, userID string, limit int) ([]VolumePoint, error)
	SessionsSince(ctx context.Context, userID string, since time.Time) ([]CompletedSession, error)
}

// MetricsRepository persists daily metrics and body measurements.
type MetricsRepository interface {
	WeightSeries(ctx context.Context, userID string, limit int) ([]WeightPoint, error)
	GetDailyMetric(ctx context.Context, userID string, day time.Time) (*DailyMetric, error)
	UpsertDailyMetric(ctx context.Context, metric DailyMetric) error
	UpsertBodyMeasurement(ctx context.Context, measurement BodyMeasurement) error
}

// ProfileRepository persists athlete profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	SaveProfile(ctx context.Context, profile Profile) error
	AddXP(ctx context.Context, userID string, delta int) (int, error)
}

// FoodRepository persists the food journal.
type FoodRepository interface {
	InsertFood(ctx context.Context, entry FoodLog) (FoodLog, error)
	DeleteFood(ctx context.Context, userID, id string) error
	ListFood(ctx context.Context, userID string, day time.Time) ([]FoodLog, error)
}

// ScheduleRepository persists planned workouts.
type ScheduleRepository interface {
	ReplaceSchedule(ctx context.Context, userID string, workouts []ScheduledWorkout) error
	Upcoming(ctx context.Context, userID string, from, to time.Time) ([]ScheduledWorkout, error)
}

// Store bundles every repository behind one backend.
type Store interface {
	SessionRepository
	MetricsRepository
	ProfileRepository
	FoodRepository
	ScheduleRepository
}

// Cursor models the pagination token for session listings.
type Cursor struct {
	Date time.Time
	ID   string
}
