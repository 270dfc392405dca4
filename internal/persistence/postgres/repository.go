// Package postgres implements the repositories on PostgreSQL through pgx.
// Every statement runs in a transaction scoped to the user through the
// app.user_id setting that the row-level security policies check.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/events"
	"example.com/coach/internal/observability"
)

// Repository provides Postgres-backed persistence for history, metrics,
// profiles, the food journal, the schedule and outbox events.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ domain.Store = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// inUserTx runs fn in a transaction bound to userID and commits when fn
// succeeds.
func (r *Repository) inUserTx(ctx context.Context, op, userID string, fn func(pgx.Tx) error) (err error) {
	ctx, span := observability.Tracer.Start(ctx, "postgres."+op)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("user_id", userID))

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", userID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const sessionColumns = `id::text, user_id, performed_at, title, duration, exercises, volume, rpe`

func scanSession(row pgx.Row) (domain.CompletedSession, error) {
	var (
		s   domain.CompletedSession
		raw []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Date, &s.Title, &s.Duration, &raw, &s.Volume, &s.RPE); err != nil {
		return domain.CompletedSession{}, err
	}
	if err := json.Unmarshal(raw, &s.Exercises); err != nil {
		return domain.CompletedSession{}, fmt.Errorf("decode exercises of %s: %w", s.ID, err)
	}
	return s, nil
}

func collectSessions(rows pgx.Rows) ([]domain.CompletedSession, error) {
	defer rows.Close()
	out := make([]domain.CompletedSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSession writes the session keyed by user, calendar day and title.
// An existing row keeps its id and date and takes everything else from
// session. The workout.completed event and the schedule update share the
// transaction.
func (r *Repository) UpsertSession(ctx context.Context, session domain.CompletedSession) (domain.CompletedSession, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Exercises == nil {
		session.Exercises = []domain.ExerciseEntry{}
	}
	body, err := json.Marshal(session.Exercises)
	if err != nil {
		return domain.CompletedSession{}, err
	}

	const upsert = `INSERT INTO workouts (id, user_id, performed_at, day, title, duration, exercises, volume, rpe)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (user_id, day, title) DO UPDATE
           SET duration = EXCLUDED.duration,
               exercises = EXCLUDED.exercises,
               volume = EXCLUDED.volume,
               rpe = EXCLUDED.rpe,
               updated_at = NOW()
        RETURNING id::text, performed_at, (xmax = 0) AS inserted`

	err = r.inUserTx(ctx, "upsert_session", session.UserID, func(tx pgx.Tx) error {
		var inserted bool
		if err := tx.QueryRow(ctx, upsert,
			session.ID,
			session.UserID,
			session.Date,
			domain.CalendarDay(session.Date),
			session.Title,
			session.Duration,
			body,
			session.Volume,
			session.RPE,
		).Scan(&session.ID, &session.Date, &inserted); err != nil {
			return err
		}

		completed := domain.CompletedCount(session.Exercises)
		if err := insertOutbox(ctx, tx, session.UserID, session.ID, events.TypeWorkoutCompleted, events.WorkoutCompleted{
			SessionID:    session.ID,
			UserID:       session.UserID,
			Title:        session.Title,
			PerformedAt:  session.Date,
			Volume:       session.Volume,
			RPE:          session.RPE,
			Exercises:    len(session.Exercises),
			Completed:    completed,
			AllCompleted: session.AllCompleted(),
			Replaced:     !inserted,
		}); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`UPDATE scheduled_workouts SET is_completed = TRUE
              WHERE user_id = $1 AND day = $2 AND position(lower($3) IN lower(title)) > 0`,
			session.UserID, domain.CalendarDay(session.Date), session.Title)
		return err
	})
	if err != nil {
		return domain.CompletedSession{}, err
	}
	return session, nil
}

// FetchHistory returns every session, most recent first.
func (r *Repository) FetchHistory(ctx context.Context, userID string) ([]domain.CompletedSession, error) {
	var out []domain.CompletedSession
	err := r.inUserTx(ctx, "fetch_history", userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+sessionColumns+` FROM workouts WHERE user_id=$1 ORDER BY performed_at DESC, id DESC`, userID)
		if err != nil {
			return err
		}
		out, err = collectSessions(rows)
		return err
	})
	return out, err
}

// ListSessions pages through history, most recent first.
func (r *Repository) ListSessions(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.CompletedSession, *domain.Cursor, error) {
	args := []any{userID, limit}
	query := `SELECT ` + sessionColumns + ` FROM workouts WHERE user_id=$1`
	if cursor != nil {
		query += ` AND (performed_at, id::text) < ($3, $4)`
		args = append(args, cursor.Date, cursor.ID)
	}
	query += ` ORDER BY performed_at DESC, id::text DESC LIMIT $2`

	var results []domain.CompletedSession
	err := r.inUserTx(ctx, "list_sessions", userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		results, err = collectSessions(rows)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{Date: last.Date, ID: last.ID}
	}
	return results, next, nil
}

// DeleteSession removes a session and records a workout.deleted event.
func (r *Repository) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return domain.ErrSessionNotFound
	}
	return r.inUserTx(ctx, "delete_session", userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM workouts WHERE user_id=$1 AND id=$2`, userID, sessionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrSessionNotFound
		}
		return insertOutbox(ctx, tx, userID, sessionID, events.TypeWorkoutDeleted, events.WorkoutDeleted{
			SessionID:  sessionID,
			UserID:     userID,
			OccurredAt: r.now().UTC(),
		})
	})
}

// VolumeSeries returns the most recent limit sessions' volume, oldest first.
func (r *Repository) VolumeSeries(ctx context.Context, userID string, limit int) ([]domain.VolumePoint, error) {
	const query = `SELECT performed_at, volume, title FROM (
            SELECT performed_at, volume, title, id FROM workouts
             WHERE user_id=$1 ORDER BY performed_at DESC, id DESC LIMIT $2
        ) recent ORDER BY performed_at ASC, id ASC`

	out := make([]domain.VolumePoint, 0, limit)
	err := r.inUserTx(ctx, "volume_series", userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p domain.VolumePoint
			if err := rows.Scan(&p.Date, &p.Volume, &p.Title); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// SessionsSince returns sessions performed at or after since, most recent
// first.
func (r *Repository) SessionsSince(ctx context.Context, userID string, since time.Time) ([]domain.CompletedSession, error) {
	var out []domain.CompletedSession
	err := r.inUserTx(ctx, "sessions_since", userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+sessionColumns+` FROM workouts WHERE user_id=$1 AND performed_at >= $2 ORDER BY performed_at DESC, id DESC`, userID, since)
		if err != nil {
			return err
		}
		out, err = collectSessions(rows)
		return err
	})
	return out, err
}

// WeightSeries returns the most recent limit measurements, oldest first.
func (r *Repository) WeightSeries(ctx context.Context, userID string, limit int) ([]domain.WeightPoint, error) {
	const query = `SELECT day, weight FROM (
            SELECT day, weight FROM body_measurements WHERE user_id=$1 ORDER BY day DESC LIMIT $2
        ) recent ORDER BY day ASC`

	out := make([]domain.WeightPoint, 0, limit)
	err := r.inUserTx(ctx, "weight_series", userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p domain.WeightPoint
			if err := rows.Scan(&p.Date, &p.Weight); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// GetDailyMetric returns the metric of day, or nil when none was recorded.
func (r *Repository) GetDailyMetric(ctx context.Context, userID string, day time.Time) (*domain.DailyMetric, error) {
	var metric *domain.DailyMetric
	err := r.inUserTx(ctx, "get_daily_metric", userID, func(tx pgx.Tx) error {
		m := domain.DailyMetric{UserID: userID}
		err := tx.QueryRow(ctx,
			`SELECT day, sleep_hours, sleep_quality, energy_level, stress_level, weight
               FROM daily_metrics WHERE user_id=$1 AND day=$2`,
			userID, domain.CalendarDay(day),
		).Scan(&m.Date, &m.SleepHours, &m.SleepQuality, &m.EnergyLevel, &m.StressLevel, &m.Weight)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		metric = &m
		return nil
	})
	return metric, err
}

// UpsertDailyMetric stores the metric keyed by user and day.
func (r *Repository) UpsertDailyMetric(ctx context.Context, m domain.DailyMetric) error {
	return r.inUserTx(ctx, "upsert_daily_metric", m.UserID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO daily_metrics (user_id, day, sleep_hours, sleep_quality, energy_level, stress_level, weight)
             VALUES ($1,$2,$3,$4,$5,$6,$7)
             ON CONFLICT (user_id, day) DO UPDATE
                SET sleep_hours = EXCLUDED.sleep_hours,
                    sleep_quality = EXCLUDED.sleep_quality,
                    energy_level = EXCLUDED.energy_level,
                    stress_level = EXCLUDED.stress_level,
                    weight = EXCLUDED.weight`,
			m.UserID, domain.CalendarDay(m.Date), m.SleepHours, m.SleepQuality, m.EnergyLevel, m.StressLevel, m.Weight)
		return err
	})
}

// UpsertBodyMeasurement stores the measurement keyed by user and day.
func (r *Repository) UpsertBodyMeasurement(ctx context.Context, m domain.BodyMeasurement) error {
	return r.inUserTx(ctx, "upsert_body_measurement", m.UserID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO body_measurements (user_id, day, weight) VALUES ($1,$2,$3)
             ON CONFLICT (user_id, day) DO UPDATE SET weight = EXCLUDED.weight`,
			m.UserID, domain.CalendarDay(m.Date), m.Weight)
		return err
	})
}

// GetProfile returns the profile or domain.ErrProfileNotFound.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.inUserTx(ctx, "get_profile", userID, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT user_id, name, gender, age, height, weight, goal, experience_level, frequency, xp
               FROM profiles WHERE user_id=$1`, userID,
		).Scan(&p.UserID, &p.Name, &p.Gender, &p.Age, &p.Height, &p.Weight, &p.Goal, &p.Level, &p.Frequency, &p.XP)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrProfileNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile stores the profile, including its XP.
func (r *Repository) SaveProfile(ctx context.Context, p domain.Profile) error {
	return r.inUserTx(ctx, "save_profile", p.UserID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO profiles (user_id, name, gender, age, height, weight, goal, experience_level, frequency, xp)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
             ON CONFLICT (user_id) DO UPDATE
                SET name = EXCLUDED.name,
                    gender = EXCLUDED.gender,
                    age = EXCLUDED.age,
                    height = EXCLUDED.height,
                    weight = EXCLUDED.weight,
                    goal = EXCLUDED.goal,
                    experience_level = EXCLUDED.experience_level,
                    frequency = EXCLUDED.frequency,
                    xp = EXCLUDED.xp,
                    updated_at = NOW()`,
			p.UserID, p.Name, p.Gender, p.Age, p.Height, p.Weight, p.Goal, p.Level, p.Frequency, p.XP)
		return err
	})
}

// AddXP adds delta to the profile XP atomically, creating the profile if
// needed, and returns the new total.
func (r *Repository) AddXP(ctx context.Context, userID string, delta int) (int, error) {
	var xp int
	err := r.inUserTx(ctx, "add_xp", userID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO profiles (user_id, xp) VALUES ($1, $2)
             ON CONFLICT (user_id) DO UPDATE SET xp = profiles.xp + EXCLUDED.xp, updated_at = NOW()
             RETURNING xp`, userID, delta,
		).Scan(&xp)
	})
	return xp, err
}

// InsertFood stores a food log entry and returns it with its id and
// creation time.
func (r *Repository) InsertFood(ctx context.Context, e domain.FoodLog) (domain.FoodLog, error) {
	e.ID = uuid.NewString()
	e.Date = domain.CalendarDay(e.Date)
	err := r.inUserTx(ctx, "insert_food", e.UserID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO nutrition_logs (id, user_id, day, dish_name, meal_type, calories, protein, fat, carbs, weight)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING created_at`,
			e.ID, e.UserID, e.Date, e.DishName, e.MealType, e.Calories, e.Protein, e.Fat, e.Carbs, e.Weight,
		).Scan(&e.CreatedAt)
	})
	if err != nil {
		return domain.FoodLog{}, err
	}
	return e, nil
}

// DeleteFood removes a food log entry.
func (r *Repository) DeleteFood(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrFoodNotFound
	}
	return r.inUserTx(ctx, "delete_food", userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM nutrition_logs WHERE user_id=$1 AND id=$2`, userID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrFoodNotFound
		}
		return nil
	})
}

// ListFood returns the entries logged on day, newest first.
func (r *Repository) ListFood(ctx context.Context, userID string, day time.Time) ([]domain.FoodLog, error) {
	out := make([]domain.FoodLog, 0)
	err := r.inUserTx(ctx, "list_food", userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id::text, user_id, day, dish_name, meal_type, calories, protein, fat, carbs, weight, created_at
               FROM nutrition_logs WHERE user_id=$1 AND day=$2 ORDER BY created_at DESC`,
			userID, domain.CalendarDay(day))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e domain.FoodLog
			if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.DishName, &e.MealType, &e.Calories, &e.Protein, &e.Fat, &e.Carbs, &e.Weight, &e.CreatedAt); err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// ReplaceSchedule drops the user's workouts on the given days and stores the
// new ones.
func (r *Repository) ReplaceSchedule(ctx context.Context, userID string, workouts []domain.ScheduledWorkout) error {
	if len(workouts) == 0 {
		return nil
	}
	days := make([]time.Time, 0, len(workouts))
	for _, w := range workouts {
		days = append(days, domain.CalendarDay(w.Date))
	}
	return r.inUserTx(ctx, "replace_schedule", userID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM scheduled_workouts WHERE user_id=$1 AND day = ANY($2)`, userID, days); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, w := range workouts {
			id := w.ID
			if id == "" {
				id = uuid.NewString()
			}
			var plan []byte
			if w.Plan != nil {
				var err error
				if plan, err = json.Marshal(w.Plan); err != nil {
					return err
				}
			}
			batch.Queue(`INSERT INTO scheduled_workouts (id, user_id, day, title, plan, is_completed) VALUES ($1,$2,$3,$4,$5,$6)`,
				id, userID, domain.CalendarDay(w.Date), w.Title, plan, w.Completed)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Upcoming returns not-completed workouts between from and to, by date.
func (r *Repository) Upcoming(ctx context.Context, userID string, from, to time.Time) ([]domain.ScheduledWorkout, error) {
	out := make([]domain.ScheduledWorkout, 0)
	err := r.inUserTx(ctx, "upcoming", userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id::text, user_id, day, title, plan, is_completed FROM scheduled_workouts
              WHERE user_id=$1 AND day BETWEEN $2 AND $3 AND NOT is_completed
              ORDER BY day ASC`,
			userID, domain.CalendarDay(from), domain.CalendarDay(to))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				w   domain.ScheduledWorkout
				raw []byte
			)
			if err := rows.Scan(&w.ID, &w.UserID, &w.Date, &w.Title, &raw, &w.Completed); err != nil {
				return err
			}
			if len(raw) > 0 {
				w.Plan = &domain.WorkoutPlan{}
				if err := json.Unmarshal(raw, w.Plan); err != nil {
					return fmt.Errorf("decode plan of %s: %w", w.ID, err)
				}
			}
			out = append(out, w)
		}
		return rows.Err()
	})
	return out, err
}
