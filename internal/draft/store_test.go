package draft

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/quantity"
)

func pushPlan() domain.WorkoutPlan {
	return domain.WorkoutPlan{
		Title:    "Push Day",
		Duration: "45 min",
		Exercises: []domain.ExerciseEntry{
			{ID: "bench", Name: "Bench Press", Sets: 4, Reps: quantity.Number(8), Weight: quantity.Text("60kg")},
			{ID: "ohp", Name: "Overhead Press", Sets: 3, Reps: quantity.Text("8-10"), Weight: quantity.Number(35)},
		},
	}
}

func TestResumeOrStartInitialisesFromPlan(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, NewMemoryKV())
	require.NoError(t, err)

	d, resumed, err := store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)
	require.False(t, resumed)
	require.Equal(t, "Push Day", d.Title)
	require.Len(t, d.Exercises, 2)
	require.Equal(t, 4, *d.Exercises[0].ActualSets)
	require.Equal(t, "60kg", d.Exercises[0].ActualWeight.String())
	require.Equal(t, "8-10", d.Exercises[1].ActualReps.String())
}

func TestDraftSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	store, err := Open(ctx, kv)
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "bench")
	require.NoError(t, err)
	_, err = store.EditField(ctx, "bench", FieldActualWeight, quantity.Text("62.5"))
	require.NoError(t, err)

	reopened, err := Open(ctx, kv)
	require.NoError(t, err)
	d, ok := reopened.Snapshot()
	require.True(t, ok)
	require.Equal(t, "Push Day", d.Title)
	require.True(t, d.Exercises[0].Completed)
	require.Equal(t, "62.5", d.Exercises[0].ActualWeight.String())
}

func TestResumeMatchingTitleKeepsProgress(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store, err := Open(ctx, kv)
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "ohp")
	require.NoError(t, err)

	reopened, err := Open(ctx, kv)
	require.NoError(t, err)
	d, resumed, err := reopened.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)
	require.True(t, resumed)
	require.True(t, d.Exercises[1].Completed)
}

func TestResumeDifferentTitleReplacesDraft(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, NewMemoryKV())
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "bench")
	require.NoError(t, err)

	legs := domain.WorkoutPlan{Title: "Leg Day", Exercises: []domain.ExerciseEntry{{Name: "Squat", Sets: 5, Reps: quantity.Number(5)}}}
	d, resumed, err := store.ResumeOrStart(ctx, legs)
	require.NoError(t, err)
	require.False(t, resumed)
	require.Equal(t, "Leg Day", d.Title)
	require.Len(t, d.Exercises, 1)
	require.Equal(t, "1", d.Exercises[0].ID)
	require.False(t, d.Exercises[0].Completed)
}

func TestEditFieldSetsAndClears(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, NewMemoryKV())
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)

	d, err := store.EditField(ctx, "bench", FieldActualSets, quantity.Text("5 sets"))
	require.NoError(t, err)
	require.Equal(t, 5, *d.Exercises[0].ActualSets)

	d, err = store.EditField(ctx, "bench", FieldActualSets, quantity.Value{})
	require.NoError(t, err)
	require.Nil(t, d.Exercises[0].ActualSets)
	require.Equal(t, 4, d.Exercises[0].EffectiveSets())

	_, err = store.EditField(ctx, "bench", Field("weight"), quantity.Number(1))
	require.ErrorIs(t, err, ErrUnknownField)

	_, err = store.Toggle(ctx, "missing")
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestFinalizedStoreIgnoresMutations(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store, err := Open(ctx, kv)
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)

	require.NoError(t, store.Finalize(ctx))
	require.True(t, store.Finalized())

	_, err = store.Toggle(ctx, "bench")
	require.NoError(t, err)
	_, err = store.EditField(ctx, "bench", FieldActualReps, quantity.Number(3))
	require.NoError(t, err)

	_, ok := store.Snapshot()
	require.False(t, ok)
	_, found, err := kv.Get(ctx, keyExercises)
	require.NoError(t, err)
	require.False(t, found)
}

func TestLockedStoreIgnoresMutationsUntilUnlocked(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, NewMemoryKV())
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)

	_, err = store.Lock()
	require.NoError(t, err)
	_, err = store.Lock()
	require.ErrorIs(t, err, ErrLocked)

	d, err := store.Toggle(ctx, "bench")
	require.NoError(t, err)
	require.False(t, d.Exercises[0].Completed)
	require.ErrorIs(t, store.Clear(ctx), ErrLocked)

	store.Unlock()
	d, err = store.Toggle(ctx, "bench")
	require.NoError(t, err)
	require.True(t, d.Exercises[0].Completed)
}

func TestFailedWriteKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{MemoryKV: NewMemoryKV()}
	store, err := Open(ctx, kv)
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)

	kv.failSet = errors.New("disk full")
	_, err = store.Toggle(ctx, "bench")
	require.ErrorIs(t, err, kv.failSet)

	d, ok := store.Snapshot()
	require.True(t, ok)
	require.False(t, d.Exercises[0].Completed)
}

func TestFailedTitleWriteKeepsPersistedDraftConsistent(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{MemoryKV: NewMemoryKV()}
	store, err := Open(ctx, kv)
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)

	pull := domain.WorkoutPlan{Title: "Pull Day", Duration: "40 min", Exercises: []domain.ExerciseEntry{{Name: "Row", Sets: 4, Reps: quantity.Number(10)}}}
	kv.failSet, kv.failKey = errors.New("disk full"), keyTitle
	_, _, err = store.ResumeOrStart(ctx, pull)
	require.ErrorIs(t, err, kv.failSet)

	reopened, err := Open(ctx, kv)
	require.NoError(t, err)
	d, ok := reopened.Snapshot()
	require.True(t, ok)
	require.Equal(t, "Push Day", d.Title)
	require.Equal(t, "45 min", d.Duration)
	require.Equal(t, "Bench Press", d.Exercises[0].Name)

	kv.failSet = nil
	d, resumed, err := reopened.ResumeOrStart(ctx, pull)
	require.NoError(t, err)
	require.False(t, resumed)
	require.Equal(t, "Row", d.Exercises[0].Name)
}

func TestDurationSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store, err := Open(ctx, kv)
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)

	reopened, err := Open(ctx, kv)
	require.NoError(t, err)
	d, ok := reopened.Snapshot()
	require.True(t, ok)
	require.Equal(t, "45 min", d.Duration)
}

func TestFileKVSetAllWritesNothingOnFailure(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "a", []byte("old")))

	// A directory where the temp file should go makes staging "b" fail.
	require.NoError(t, os.MkdirAll(filepath.Join(kv.path("b")+".tmp", "x"), 0o700))

	err = kv.SetAll(ctx, Pair{Key: "a", Value: []byte("new")}, Pair{Key: "b", Value: []byte("new")})
	require.Error(t, err)

	value, found, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "old", string(value))
	_, err = os.Stat(kv.path("a") + ".tmp")
	require.True(t, os.IsNotExist(err))

	require.NoError(t, os.RemoveAll(kv.path("b")+".tmp"))
	require.NoError(t, kv.SetAll(ctx, Pair{Key: "a", Value: []byte("new")}, Pair{Key: "b", Value: []byte("new")}))
	value, _, err = kv.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "new", string(value))
}

func TestOpenDiscardsCorruptDraft(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, keyExercises, []byte("{not json")))
	require.NoError(t, kv.Set(ctx, keyTitle, []byte("Push Day")))

	store, err := Open(ctx, kv)
	require.NoError(t, err)
	_, ok := store.Snapshot()
	require.False(t, ok)
	_, found, err := kv.Get(ctx, keyTitle)
	require.NoError(t, err)
	require.False(t, found)
}

func TestClearRemovesDraft(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	scoped := Scoped(kv, "user-1")
	store, err := Open(ctx, scoped)
	require.NoError(t, err)
	_, _, err = store.ResumeOrStart(ctx, pushPlan())
	require.NoError(t, err)

	_, found, err := kv.Get(ctx, "coach:user-1:"+keyTitle)
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, store.Clear(ctx))
	_, ok := store.Snapshot()
	require.False(t, ok)
	_, found, err = kv.Get(ctx, "coach:user-1:"+keyTitle)
	require.NoError(t, err)
	require.False(t, found)
}

type flakyKV struct {
	*MemoryKV
	failSet error
	// failKey limits failSet to writes that touch this key.
	failKey string
}

func (f *flakyKV) fails(key string) bool {
	return f.failSet != nil && (f.failKey == "" || f.failKey == key)
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	if f.fails(key) {
		return f.failSet
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func (f *flakyKV) SetAll(ctx context.Context, pairs ...Pair) error {
	for _, p := range pairs {
		if f.fails(p.Key) {
			return f.failSet
		}
	}
	return f.MemoryKV.SetAll(ctx, pairs...)
}
