package draft

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/require"
)

func TestRedisKVRoundTrip(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	kv := NewRedisKV(db)
	ctx := context.Background()

	mock.ExpectGet("coach:u1:active_workout_title").SetErr(redis.Nil)
	_, found, err := kv.Get(ctx, "coach:u1:active_workout_title")
	require.NoError(t, err)
	require.False(t, found)

	mock.ExpectSet("coach:u1:active_workout_title", []byte("Push Day"), 0).SetVal("OK")
	require.NoError(t, kv.Set(ctx, "coach:u1:active_workout_title", []byte("Push Day")))

	mock.ExpectGet("coach:u1:active_workout_title").SetVal("Push Day")
	value, found, err := kv.Get(ctx, "coach:u1:active_workout_title")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Push Day", string(value))

	mock.ExpectDel("coach:u1:a", "coach:u1:b").SetVal(2)
	require.NoError(t, kv.Delete(ctx, "coach:u1:a", "coach:u1:b"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisKVSetAllUsesSingleMSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	kv := Scoped(NewRedisKV(db), "u1")
	ctx := context.Background()

	mock.ExpectMSet("coach:u1:active_workout_exercises", []byte("[]"), "coach:u1:active_workout_title", []byte("Pull Day")).
		SetErr(errors.New("READONLY"))
	err := kv.SetAll(ctx,
		Pair{Key: "active_workout_exercises", Value: []byte("[]")},
		Pair{Key: "active_workout_title", Value: []byte("Pull Day")},
	)
	require.ErrorContains(t, err, "READONLY")

	mock.ExpectMSet("coach:u1:active_workout_exercises", []byte("[]"), "coach:u1:active_workout_title", []byte("Pull Day")).
		SetVal("OK")
	require.NoError(t, kv.SetAll(ctx,
		Pair{Key: "active_workout_exercises", Value: []byte("[]")},
		Pair{Key: "active_workout_title", Value: []byte("Pull Day")},
	))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisKVPropagatesErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	kv := NewRedisKV(db)
	ctx := context.Background()

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))
	_, _, err := kv.Get(ctx, "k")
	require.ErrorContains(t, err, "connection refused")

	require.NoError(t, kv.Delete(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreOverRedis(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	ctx := context.Background()

	mock.ExpectGet("coach:u1:active_workout_exercises").SetVal(`[{"id":"1","name":"Squat","sets":5,"reps":5,"weight":"100kg","completed":true}]`)
	mock.ExpectGet("coach:u1:active_workout_title").SetVal("Leg Day")
	mock.ExpectGet("coach:u1:active_workout_duration").SetVal("60 min")

	store, err := Open(ctx, Scoped(NewRedisKV(db), "u1"))
	require.NoError(t, err)
	d, ok := store.Snapshot()
	require.True(t, ok)
	require.Equal(t, "Leg Day", d.Title)
	require.Equal(t, "60 min", d.Duration)
	require.True(t, d.Exercises[0].Completed)
	require.Equal(t, 100, d.Exercises[0].EffectiveWeight())
	require.NoError(t, mock.ExpectationsWereMet())
}
