// Package draft owns the single in-progress workout of a user and keeps it
// durable across restarts.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/observability"
	"example.com/coach/internal/quantity"
)

const (
	keyExercises = "active_workout_exercises"
	keyTitle     = "active_workout_title"
	keyDuration  = "active_workout_duration"
)

var draftKeys = []string{keyExercises, keyTitle, keyDuration}

var (
	// ErrNoDraft is returned when an operation needs a draft and none exists.
	ErrNoDraft = errors.New("no active draft")
	// ErrEntryNotFound is returned for an unknown entry id.
	ErrEntryNotFound = errors.New("draft entry not found")
	// ErrLocked is returned when the draft is being saved.
	ErrLocked = errors.New("draft is locked while saving")
	// ErrUnknownField is returned by EditField for a non-editable field.
	ErrUnknownField = errors.New("unknown draft field")
)

// Field names an editable Actual* field of an entry.
type Field string

const (
	FieldActualSets   Field = "actual_sets"
	FieldActualReps   Field = "actual_reps"
	FieldActualWeight Field = "actual_weight"
)

// Draft is the in-progress workout.
type Draft struct {
	Title     string                 `json:"title"`
	Duration  string                 `json:"duration,omitempty"`
	Exercises []domain.ExerciseEntry `json:"exercises"`
}

// Empty reports whether the draft holds no entries.
func (d Draft) Empty() bool { return len(d.Exercises) == 0 }

func (d Draft) clone() Draft {
	return Draft{Title: d.Title, Duration: d.Duration, Exercises: domain.CloneEntries(d.Exercises)}
}

// Store holds at most one draft. Every mutation is written through to the KV
// before it becomes visible in memory.
type Store struct {
	mu        sync.Mutex
	kv        KV
	current   *Draft
	finalized bool
	locked    bool
}

// Open reads any persisted draft from kv. A corrupt persisted draft is
// discarded.
func Open(ctx context.Context, kv KV) (*Store, error) {
	s := &Store{kv: kv}

	raw, found, err := kv.Get(ctx, keyExercises)
	if err != nil {
		return nil, err
	}
	if !found {
		return s, nil
	}

	var exercises []domain.ExerciseEntry
	if err := json.Unmarshal(raw, &exercises); err != nil {
		log.WithError(err).Warn("draft: discarding unreadable persisted draft")
		if delErr := kv.Delete(ctx, draftKeys...); delErr != nil {
			return nil, delErr
		}
		return s, nil
	}

	title, _, err := kv.Get(ctx, keyTitle)
	if err != nil {
		return nil, err
	}
	duration, _, err := kv.Get(ctx, keyDuration)
	if err != nil {
		return nil, err
	}
	s.current = &Draft{Title: string(title), Duration: string(duration), Exercises: exercises}
	return s, nil
}

// Snapshot returns a deep copy of the current draft.
func (s *Store) Snapshot() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Draft{}, false
	}
	return s.current.clone(), true
}

// Finalized reports whether the last draft was completed and cleared.
func (s *Store) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// ResumeOrStart returns the persisted draft when it is non-empty and carries
// the plan's title. Otherwise it replaces it with a fresh draft built from the
// plan, with actual values defaulted from the prescription.
func (s *Store) ResumeOrStart(ctx context.Context, plan domain.WorkoutPlan) (Draft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return Draft{}, false, ErrLocked
	}
	if s.current != nil && !s.current.Empty() && s.current.Title == plan.Title {
		s.finalized = false
		return s.current.clone(), true, nil
	}

	next := Draft{Title: plan.Title, Duration: plan.Duration, Exercises: make([]domain.ExerciseEntry, 0, len(plan.Exercises))}
	for i, entry := range plan.Exercises {
		entry = entry.WithActualDefaults()
		entry.Completed = false
		if entry.ID == "" {
			entry.ID = strconv.Itoa(i + 1)
		}
		next.Exercises = append(next.Exercises, entry)
	}

	if err := s.persist(ctx, next); err != nil {
		return Draft{}, false, err
	}
	s.current = &next
	s.finalized = false
	observability.RecordDraftMutation("start")
	return next.clone(), false, nil
}

// Toggle flips the completion flag of one entry. It is a no-op on a finalized
// or locked draft.
func (s *Store) Toggle(ctx context.Context, entryID string) (Draft, error) {
	return s.mutate(ctx, "toggle", entryID, func(entry *domain.ExerciseEntry) error {
		entry.Completed = !entry.Completed
		return nil
	})
}

// EditField overwrites one Actual* field. An absent value clears the field so
// the prescription applies again.
func (s *Store) EditField(ctx context.Context, entryID string, field Field, value quantity.Value) (Draft, error) {
	switch field {
	case FieldActualSets, FieldActualReps, FieldActualWeight:
	default:
		return Draft{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	return s.mutate(ctx, "edit", entryID, func(entry *domain.ExerciseEntry) error {
		switch field {
		case FieldActualSets:
			if value.IsZero() {
				entry.ActualSets = nil
				return nil
			}
			sets := value.Int()
			entry.ActualSets = &sets
		case FieldActualReps:
			entry.ActualReps = value
		case FieldActualWeight:
			entry.ActualWeight = value
		}
		return nil
	})
}

func (s *Store) mutate(ctx context.Context, kind, entryID string, apply func(*domain.ExerciseEntry) error) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		observability.RecordDraftIgnored(kind)
		return Draft{}, nil
	}
	if s.current == nil {
		return Draft{}, ErrNoDraft
	}
	if s.locked {
		observability.RecordDraftIgnored(kind)
		return s.current.clone(), nil
	}

	idx := -1
	for i, entry := range s.current.Exercises {
		if entry.ID == entryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s.current.clone(), ErrEntryNotFound
	}

	next := s.current.clone()
	if err := apply(&next.Exercises[idx]); err != nil {
		return s.current.clone(), err
	}
	if err := s.persist(ctx, next); err != nil {
		return s.current.clone(), err
	}
	s.current = &next
	observability.RecordDraftMutation(kind)
	return next.clone(), nil
}

// Clear discards the draft in memory and in the KV.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	if err := s.kv.Delete(ctx, draftKeys...); err != nil {
		return err
	}
	s.current = nil
	s.finalized = false
	observability.RecordDraftMutation("clear")
	return nil
}

// Lock freezes the draft for saving and returns the snapshot to persist.
func (s *Store) Lock() (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.finalized {
		return Draft{}, ErrNoDraft
	}
	if s.locked {
		return Draft{}, ErrLocked
	}
	s.locked = true
	return s.current.clone(), nil
}

// Unlock makes a locked draft editable again after a failed save.
func (s *Store) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
}

// Finalize clears a saved draft and rejects further edits until a new plan
// is started. The in-memory state is finalized even if the KV delete fails.
func (s *Store) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	s.locked = false
	s.finalized = true
	observability.RecordDraftMutation("finalize")
	return s.kv.Delete(ctx, draftKeys...)
}

func (s *Store) persist(ctx context.Context, d Draft) error {
	exercises, err := json.Marshal(d.Exercises)
	if err != nil {
		return fmt.Errorf("draft: encode exercises: %w", err)
	}
	return s.kv.SetAll(ctx,
		Pair{Key: keyExercises, Value: exercises},
		Pair{Key: keyTitle, Value: []byte(d.Title)},
		Pair{Key: keyDuration, Value: []byte(d.Duration)},
	)
}
