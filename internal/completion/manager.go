package completion

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/draft"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	listeners []Listener
	now       func() time.Time
	logger    log.FieldLogger
}

// WithListener registers a listener for finalized sessions.
func WithListener(l Listener) Option {
	return func(o *options) {
		o.listeners = append(o.listeners, l)
	}
}

// WithClock overrides the clock used to date completed sessions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger overrides the logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Manager keeps one draft store and at most one workflow per user.
type Manager struct {
	mu        sync.Mutex
	kv        draft.KV
	repo      domain.SessionRepository
	opts      options
	stores    map[string]*draft.Store
	workflows map[string]*Workflow
}

// NewManager constructs a Manager persisting drafts through kv.
func NewManager(kv draft.KV, repo domain.SessionRepository, opts ...Option) *Manager {
	o := options{now: time.Now, logger: log.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		kv:        kv,
		repo:      repo,
		opts:      o,
		stores:    make(map[string]*draft.Store),
		workflows: make(map[string]*Workflow),
	}
}

func (m *Manager) storeFor(ctx context.Context, userID string) (*draft.Store, error) {
	if store, ok := m.stores[userID]; ok {
		return store, nil
	}
	store, err := draft.Open(ctx, draft.Scoped(m.kv, userID))
	if err != nil {
		return nil, err
	}
	m.stores[userID] = store
	return store, nil
}

// Open resumes the user's draft when it matches the plan title, otherwise it
// replaces it with a fresh draft. A workflow with a save in flight is never
// replaced, and a replaced workflow is retired.
func (m *Manager) Open(ctx context.Context, userID string, plan domain.WorkoutPlan) (*Workflow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.workflows[userID]
	if !ok {
		return m.start(ctx, userID, plan)
	}

	// Holding prev.mu keeps SubmitRPE from locking the draft while it is
	// being replaced.
	prev.mu.Lock()
	defer prev.mu.Unlock()
	if prev.inFlight {
		return nil, false, ErrPersistInFlight
	}
	if prev.state != StateFinalized {
		if d, ok := prev.store.Snapshot(); ok && !d.Empty() && d.Title == plan.Title {
			return prev, true, nil
		}
	}
	wf, resumed, err := m.start(ctx, userID, plan)
	if err != nil {
		return nil, false, err
	}
	prev.retire()
	return wf, resumed, nil
}

func (m *Manager) start(ctx context.Context, userID string, plan domain.WorkoutPlan) (*Workflow, bool, error) {
	store, err := m.storeFor(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	_, resumed, err := store.ResumeOrStart(ctx, plan)
	if err != nil {
		return nil, false, err
	}
	return m.track(userID, store), resumed, nil
}

func (m *Manager) track(userID string, store *draft.Store) *Workflow {
	wf := newWorkflow(userID, store, m.repo, m.opts)
	wf.onDone = m.release
	m.workflows[userID] = wf
	return wf
}

// release forgets a finalized workflow and its store. A newer workflow for the
// same user is left alone.
func (m *Manager) release(wf *Workflow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.workflows[wf.userID] == wf {
		delete(m.workflows, wf.userID)
		delete(m.stores, wf.userID)
	}
}

// Get returns the user's active workflow, reviving it from a persisted draft
// after a restart.
func (m *Manager) Get(ctx context.Context, userID string) (*Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wf, ok := m.workflows[userID]; ok {
		return wf, nil
	}
	store, err := m.storeFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := store.Snapshot(); !ok {
		delete(m.stores, userID)
		return nil, ErrNoActiveSession
	}
	return m.track(userID, store), nil
}

// Discard drops the user's draft and workflow.
func (m *Manager) Discard(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wf, ok := m.workflows[userID]; ok {
		if err := wf.Discard(ctx); err != nil {
			return err
		}
		delete(m.workflows, userID)
		delete(m.stores, userID)
		return nil
	}
	store, err := m.storeFor(ctx, userID)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	delete(m.stores, userID)
	return nil
}
