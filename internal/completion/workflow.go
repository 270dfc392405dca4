// Package completion moves a draft workout through the RPE prompt into an
// immutable history record.
package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/draft"
	"example.com/coach/internal/observability"
	"example.com/coach/internal/quantity"
)

// State is a step of the completion state machine.
type State string

const (
	StateInProgress  State = "in_progress"
	StateAwaitingRPE State = "awaiting_rpe"
	StatePersisting  State = "persisting"
	StateFinalized   State = "finalized"
)

const (
	// BaseXP is awarded for every completed session.
	BaseXP = 100
	// FullCompletionBonus is added when every entry was completed.
	FullCompletionBonus = 50
)

var (
	// ErrNoProgress is returned by Finish when no entry is completed.
	ErrNoProgress = errors.New("no completed entries yet")
	// ErrInvalidRPE is returned for ratings outside 1..10.
	ErrInvalidRPE = errors.New("rpe must be between 1 and 10")
	// ErrInvalidTransition is returned when an action does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrPersistInFlight is returned while a save is running.
	ErrPersistInFlight = errors.New("session save already in progress")
	// ErrNoActiveSession is returned when a user has no draft.
	ErrNoActiveSession = errors.New("no active session")
)

// Progress describes the live state of a draft.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
	Volume    int `json:"volume"`
}

// Result is handed to listeners once a session is finalized.
type Result struct {
	UserID       string                    `json:"user_id"`
	Session      domain.CompletedSession   `json:"session"`
	XP           int                       `json:"xp"`
	AllCompleted bool                      `json:"all_completed"`
	History      []domain.CompletedSession `json:"-"`
}

// Listener is notified after finalization. Errors are logged, not propagated.
type Listener interface {
	SessionCompleted(ctx context.Context, result Result) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, result Result) error

// SessionCompleted calls f.
func (f ListenerFunc) SessionCompleted(ctx context.Context, result Result) error {
	return f(ctx, result)
}

// Workflow is the completion state machine for one user's draft.
type Workflow struct {
	mu        sync.Mutex
	userID    string
	store     *draft.Store
	repo      domain.SessionRepository
	listeners []Listener
	now       func() time.Time
	logger    log.FieldLogger
	onDone    func(*Workflow)

	state    State
	rpe      int
	inFlight bool
	lastErr  error
	history  []domain.CompletedSession
	result   *Result
}

func newWorkflow(userID string, store *draft.Store, repo domain.SessionRepository, o options) *Workflow {
	return &Workflow{
		userID:    userID,
		store:     store,
		repo:      repo,
		listeners: o.listeners,
		now:       o.now,
		logger:    o.logger.WithField("user_id", userID),
		state:     StateInProgress,
	}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastError returns the error of the most recent failed save, if any.
func (w *Workflow) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Result returns the finalized result, if any.
func (w *Workflow) Result() (Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result == nil {
		return Result{}, false
	}
	return *w.result, true
}

// History returns the history re-read after the last successful save. It is
// empty when that read failed.
func (w *Workflow) History() []domain.CompletedSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.CompletedSession(nil), w.history...)
}

// Draft returns the current draft snapshot.
func (w *Workflow) Draft() (draft.Draft, bool) {
	return w.store.Snapshot()
}

// Progress computes live progress over the current draft.
func (w *Workflow) Progress() Progress {
	d, ok := w.store.Snapshot()
	if !ok {
		return Progress{}
	}
	return progressOf(d.Exercises)
}

func progressOf(entries []domain.ExerciseEntry) Progress {
	p := Progress{
		Completed: domain.CompletedCount(entries),
		Total:     len(entries),
		Volume:    domain.Volume(entries),
	}
	if p.Total > 0 {
		p.Percent = p.Completed * 100 / p.Total
	}
	return p
}

// Toggle flips an entry's completion flag.
func (w *Workflow) Toggle(ctx context.Context, entryID string) (draft.Draft, error) {
	return w.store.Toggle(ctx, entryID)
}

// Edit overwrites an Actual* field of an entry.
func (w *Workflow) Edit(ctx context.Context, entryID string, field draft.Field, value quantity.Value) (draft.Draft, error) {
	return w.store.EditField(ctx, entryID, field, value)
}

// Finish asks for the RPE. It needs at least one completed entry and returns
// the summary shown alongside the prompt.
func (w *Workflow) Finish() (Progress, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateInProgress {
		return Progress{}, fmt.Errorf("%w: finish from %s", ErrInvalidTransition, w.state)
	}
	d, ok := w.store.Snapshot()
	if !ok {
		return Progress{}, ErrNoActiveSession
	}
	summary := progressOf(d.Exercises)
	if summary.Completed == 0 {
		return summary, ErrNoProgress
	}
	w.state = StateAwaitingRPE
	return summary, nil
}

// Cancel returns from the RPE prompt to tracking.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateAwaitingRPE {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, w.state)
	}
	w.state = StateInProgress
	return nil
}

// SubmitRPE records the rating and saves the session. On failure the workflow
// stays in StatePersisting with the draft editable; SubmitRPE or Retry may be
// called again.
func (w *Workflow) SubmitRPE(ctx context.Context, rpe int) (Result, error) {
	if rpe < 1 || rpe > 10 {
		return Result{}, ErrInvalidRPE
	}

	w.mu.Lock()
	switch {
	case w.inFlight:
		w.mu.Unlock()
		return Result{}, ErrPersistInFlight
	case w.state != StateAwaitingRPE && w.state != StatePersisting:
		state := w.state
		w.mu.Unlock()
		return Result{}, fmt.Errorf("%w: submit rpe from %s", ErrInvalidTransition, state)
	}
	snapshot, err := w.begin()
	if err != nil {
		w.mu.Unlock()
		return Result{}, err
	}
	w.rpe = rpe
	w.mu.Unlock()

	return w.persist(ctx, snapshot, rpe)
}

// Retry repeats a failed save with the RPE already supplied.
func (w *Workflow) Retry(ctx context.Context) (Result, error) {
	w.mu.Lock()
	switch {
	case w.inFlight:
		w.mu.Unlock()
		return Result{}, ErrPersistInFlight
	case w.state != StatePersisting:
		state := w.state
		w.mu.Unlock()
		return Result{}, fmt.Errorf("%w: retry from %s", ErrInvalidTransition, state)
	}
	snapshot, err := w.begin()
	if err != nil {
		w.mu.Unlock()
		return Result{}, err
	}
	rpe := w.rpe
	w.mu.Unlock()

	return w.persist(ctx, snapshot, rpe)
}

// begin locks the draft and marks the save in flight. The draft may have been
// edited since Finish, so the progress rule is checked again on the locked
// snapshot; without progress the workflow returns to StateInProgress.
// Callers hold w.mu.
func (w *Workflow) begin() (draft.Draft, error) {
	snapshot, err := w.store.Lock()
	if err != nil {
		return draft.Draft{}, fmt.Errorf("completion: lock draft: %w", err)
	}
	if domain.CompletedCount(snapshot.Exercises) == 0 {
		w.store.Unlock()
		w.state = StateInProgress
		w.lastErr = nil
		return draft.Draft{}, ErrNoProgress
	}
	w.state = StatePersisting
	w.inFlight = true
	return snapshot, nil
}

func (w *Workflow) persist(ctx context.Context, snapshot draft.Draft, rpe int) (Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "completion.persist")
	defer span.End()

	record := domain.CompletedSession{
		UserID:    w.userID,
		Date:      w.now().UTC(),
		Title:     snapshot.Title,
		Duration:  snapshot.Duration,
		Exercises: snapshot.Exercises,
		Volume:    domain.Volume(snapshot.Exercises),
		RPE:       rpe,
	}
	span.SetAttributes(
		attribute.String("session.title", record.Title),
		attribute.Int("session.volume", record.Volume),
		attribute.Int("session.rpe", rpe),
	)

	stored, err := w.repo.UpsertSession(ctx, record)
	if err != nil {
		w.store.Unlock()
		w.fail(err)
		observability.RecordPersistFailure()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		w.logger.WithError(err).Warn("completion: session save failed, draft kept")
		return Result{}, fmt.Errorf("completion: save session: %w", err)
	}

	history, err := w.repo.FetchHistory(ctx, w.userID)
	if err != nil {
		w.logger.WithError(err).Warn("completion: history refresh failed")
		history = nil
	}

	if err := w.store.Finalize(ctx); err != nil {
		w.logger.WithError(err).Warn("completion: clearing persisted draft failed")
	}

	all := stored.AllCompleted() && len(stored.Exercises) > 0
	xp := BaseXP
	if all {
		xp += FullCompletionBonus
	}
	result := Result{UserID: w.userID, Session: stored, XP: xp, AllCompleted: all, History: history}

	w.mu.Lock()
	w.state = StateFinalized
	w.inFlight = false
	w.lastErr = nil
	w.history = history
	w.result = &result
	w.mu.Unlock()

	observability.RecordSessionCompleted(stored.Date, all)
	w.logger.WithFields(log.Fields{"session_id": stored.ID, "volume": stored.Volume, "xp": xp}).Info("completion: session finalized")

	for _, l := range w.listeners {
		if err := l.SessionCompleted(ctx, result); err != nil {
			w.logger.WithError(err).Warn("completion: listener failed")
		}
	}
	if w.onDone != nil {
		w.onDone(w)
	}
	return result, nil
}

func (w *Workflow) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight = false
	w.lastErr = err
}

// Discard drops the draft. It is refused while a save is running.
func (w *Workflow) Discard(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		return ErrPersistInFlight
	}
	if w.state == StateFinalized {
		return nil
	}
	if err := w.store.Clear(ctx); err != nil {
		return err
	}
	w.state = StateFinalized
	return nil
}

// retire finalizes a workflow whose draft was replaced by another plan so a
// late SubmitRPE cannot save the replacement under this workflow's rating.
// Callers hold w.mu.
func (w *Workflow) retire() {
	w.state = StateFinalized
}
