// Package memory provides an in-process implementation of every repository,
// used for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/coach/internal/domain"
)

// Repository stores everything in maps guarded by one lock.
type Repository struct {
	mu           sync.RWMutex
	sessions     map[string][]domain.CompletedSession
	metrics      map[string]map[time.Time]domain.DailyMetric
	measurements map[string]map[time.Time]domain.BodyMeasurement
	profiles     map[string]domain.Profile
	food         map[string][]domain.FoodLog
	schedule     map[string][]domain.ScheduledWorkout
}

var _ domain.Store = (*Repository)(nil)

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		sessions:     make(map[string][]domain.CompletedSession),
		metrics:      make(map[string]map[time.Time]domain.DailyMetric),
		measurements: make(map[string]map[time.Time]domain.BodyMeasurement),
		profiles:     make(map[string]domain.Profile),
		food:         make(map[string][]domain.FoodLog),
		schedule:     make(map[string][]domain.ScheduledWorkout),
	}
}

// UpsertSession replaces the session with the same title on the same day, or
// inserts a new one. The matching scheduled workout is marked completed.
func (r *Repository) UpsertSession(_ context.Context, session domain.CompletedSession) (domain.CompletedSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session.Exercises = domain.CloneEntries(session.Exercises)
	existing := r.sessions[session.UserID]
	replaced := false
	for i, s := range existing {
		if s.Title == session.Title && domain.SameDay(s.Date, session.Date) {
			session.ID = s.ID
			session.Date = s.Date
			existing[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		existing = append(existing, session)
	}
	r.sessions[session.UserID] = existing

	for i, w := range r.schedule[session.UserID] {
		if domain.SameDay(w.Date, session.Date) && titleMatches(w.Title, session.Title) {
			r.schedule[session.UserID][i].Completed = true
		}
	}
	return session, nil
}

func titleMatches(scheduled, completed string) bool {
	return strings.Contains(strings.ToLower(scheduled), strings.ToLower(completed))
}

func (r *Repository) sortedSessions(userID string) []domain.CompletedSession {
	out := make([]domain.CompletedSession, 0, len(r.sessions[userID]))
	for _, s := range r.sessions[userID] {
		s.Exercises = domain.CloneEntries(s.Exercises)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// FetchHistory returns every session, most recent first.
func (r *Repository) FetchHistory(_ context.Context, userID string) ([]domain.CompletedSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedSessions(userID), nil
}

// ListSessions pages through history, most recent first.
func (r *Repository) ListSessions(_ context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.CompletedSession, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.sortedSessions(userID)
	start := 0
	if cursor != nil {
		start = len(all)
		for i, s := range all {
			if s.Date.Before(cursor.Date) || (s.Date.Equal(cursor.Date) && s.ID < cursor.ID) {
				start = i
				break
			}
		}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]

	var next *domain.Cursor
	if len(page) == limit && end < len(all) {
		last := page[len(page)-1]
		next = &domain.Cursor{Date: last.Date, ID: last.ID}
	}
	return page, next, nil
}

// DeleteSession removes a session wholesale.
func (r *Repository) DeleteSession(_ context.Context, userID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := r.sessions[userID]
	for i, s := range sessions {
		if s.ID == sessionID {
			r.sessions[userID] = append(sessions[:i:i], sessions[i+1:]...)
			return nil
		}
	}
	return domain.ErrSessionNotFound
}

// VolumeSeries returns the most recent sessions' volume in ascending order.
func (r *Repository) VolumeSeries(_ context.Context, userID string, limit int) ([]domain.VolumePoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.sortedSessions(userID)
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]domain.VolumePoint, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, domain.VolumePoint{Date: all[i].Date, Volume: all[i].Volume, Title: all[i].Title})
	}
	return out, nil
}

// SessionsSince returns sessions dated at or after since, most recent first.
func (r *Repository) SessionsSince(_ context.Context, userID string, since time.Time) ([]domain.CompletedSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.CompletedSession, 0)
	for _, s := range r.sortedSessions(userID) {
		if !s.Date.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

// WeightSeries returns the most recent measurements in ascending order.
func (r *Repository) WeightSeries(_ context.Context, userID string, limit int) ([]domain.WeightPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.WeightPoint, 0, len(r.measurements[userID]))
	for _, m := range r.measurements[userID] {
		out = append(out, domain.WeightPoint{Date: m.Date, Weight: m.Weight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// GetDailyMetric returns the metric for a day, or nil.
func (r *Repository) GetDailyMetric(_ context.Context, userID string, day time.Time) (*domain.DailyMetric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metric, ok := r.metrics[userID][domain.CalendarDay(day)]
	if !ok {
		return nil, nil
	}
	return &metric, nil
}

// UpsertDailyMetric stores the metric keyed by user and day.
func (r *Repository) UpsertDailyMetric(_ context.Context, metric domain.DailyMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	metric.Date = domain.CalendarDay(metric.Date)
	if r.metrics[metric.UserID] == nil {
		r.metrics[metric.UserID] = make(map[time.Time]domain.DailyMetric)
	}
	r.metrics[metric.UserID][metric.Date] = metric
	return nil
}

// UpsertBodyMeasurement stores the measurement keyed by user and day.
func (r *Repository) UpsertBodyMeasurement(_ context.Context, m domain.BodyMeasurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m.Date = domain.CalendarDay(m.Date)
	if r.measurements[m.UserID] == nil {
		r.measurements[m.UserID] = make(map[time.Time]domain.BodyMeasurement)
	}
	r.measurements[m.UserID][m.Date] = m
	return nil
}

// GetProfile returns the profile or domain.ErrProfileNotFound.
func (r *Repository) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

// SaveProfile stores the profile.
func (r *Repository) SaveProfile(_ context.Context, profile domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = profile
	return nil
}

// AddXP adds delta to the profile XP, creating the profile if needed.
func (r *Repository) AddXP(_ context.Context, userID string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.profiles[userID]
	p.UserID = userID
	p.XP += delta
	r.profiles[userID] = p
	return p.XP, nil
}

// InsertFood stores a food log entry and assigns its id.
func (r *Repository) InsertFood(_ context.Context, entry domain.FoodLog) (domain.FoodLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.food[entry.UserID] = append(r.food[entry.UserID], entry)
	return entry, nil
}

// DeleteFood removes a food log entry.
func (r *Repository) DeleteFood(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.food[userID]
	for i, e := range entries {
		if e.ID == id {
			r.food[userID] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return domain.ErrFoodNotFound
}

// ListFood returns the entries logged on day, newest first.
func (r *Repository) ListFood(_ context.Context, userID string, day time.Time) ([]domain.FoodLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.FoodLog, 0)
	for _, e := range r.food[userID] {
		if domain.SameDay(e.Date, day) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ReplaceSchedule drops the user's workouts on the given days and stores the
// new ones.
func (r *Repository) ReplaceSchedule(_ context.Context, userID string, workouts []domain.ScheduledWorkout) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	days := make(map[time.Time]struct{}, len(workouts))
	for _, w := range workouts {
		days[domain.CalendarDay(w.Date)] = struct{}{}
	}
	kept := make([]domain.ScheduledWorkout, 0, len(r.schedule[userID])+len(workouts))
	for _, w := range r.schedule[userID] {
		if _, replace := days[domain.CalendarDay(w.Date)]; !replace {
			kept = append(kept, w)
		}
	}
	for _, w := range workouts {
		w.UserID = userID
		w.Date = domain.CalendarDay(w.Date)
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		kept = append(kept, w)
	}
	r.schedule[userID] = kept
	return nil
}

// Upcoming returns not-completed workouts between from and to, by date.
func (r *Repository) Upcoming(_ context.Context, userID string, from, to time.Time) ([]domain.ScheduledWorkout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from, to = domain.CalendarDay(from), domain.CalendarDay(to)
	out := make([]domain.ScheduledWorkout, 0)
	for _, w := range r.schedule[userID] {
		if w.Completed || w.Date.Before(from) || w.Date.After(to) {
			continue
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
