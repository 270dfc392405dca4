package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/coach/internal/events"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PersistenceHandler records consumed workout events in workout_event_log.
// Redelivered records are ignored.
type PersistenceHandler struct {
	db execer
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{db: pool}
}

type logRow struct {
	sessionID  string
	userID     string
	title      string
	volume     int
	rpe        int
	occurredAt time.Time
}

// Handle stores the event. Unknown event types are skipped.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	var row logRow
	switch msg.EventType {
	case events.TypeWorkoutCompleted:
		var e events.WorkoutCompleted
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		row = logRow{sessionID: e.SessionID, userID: e.UserID, title: e.Title, volume: e.Volume, rpe: e.RPE, occurredAt: e.PerformedAt}
	case events.TypeWorkoutDeleted:
		var e events.WorkoutDeleted
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		row = logRow{sessionID: e.SessionID, userID: e.UserID, occurredAt: e.OccurredAt}
	default:
		return nil
	}
	if row.userID == "" {
		row.userID = msg.UserID
	}
	if row.occurredAt.IsZero() {
		row.occurredAt = msg.Timestamp
	}

	_, err := h.db.Exec(ctx,
		`INSERT INTO workout_event_log (event_key, event_type, session_id, user_id, title, volume, rpe, occurred_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         ON CONFLICT (event_key) DO NOTHING`,
		msg.Key(), msg.EventType, row.sessionID, row.userID, row.title, row.volume, row.rpe, row.occurredAt,
	)
	return err
}
