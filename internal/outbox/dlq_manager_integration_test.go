//go:build integration

package outbox

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("coach"),
		postgrescontainer.WithUsername("coach"),
		postgrescontainer.WithPassword("coach"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		p, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return false
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return false
		}
		pool = p
		return true
	}, 30*time.Second, time.Second)
	t.Cleanup(pool.Close)

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	schema, err := os.ReadFile(filepath.Join(filepath.Dir(file), "../../db/postgres/migrations/0001_init.up.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	return pool
}

func TestDLQManagerRequeuesAndQuarantines(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	writer := NewDLQWriter(pool)
	require.NoError(t, writer.Write(ctx, message(1, "workout_events"), "broker down"))
	require.NoError(t, writer.Write(ctx, message(2, "workout_events"), "broker down"))
	_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET retry_count = 3 WHERE event_id = 2`)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 3, time.Minute)
	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, requeued)

	var outboxRows, quarantined, remaining int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&outboxRows))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&quarantined))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&remaining))
	require.Equal(t, 1, outboxRows)
	require.Equal(t, 1, quarantined)
	require.Equal(t, 1, remaining)

	store := &pgStore{pool: pool, dlq: writer}
	claimed, err := store.claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.markPublished(ctx, claimed))

	again, err := store.claim(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestDLQWriterClosesOutboxRow(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ('u1', 'session', 's1', 'workout.completed', 'workout_events', 'u1', '{"session_id":"s1"}')`)
	require.NoError(t, err)

	store := &pgStore{pool: pool, dlq: NewDLQWriter(pool)}
	claimed, err := store.claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.deadLetter(ctx, claimed[0], "broker down"))

	again, err := store.claim(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, again)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE event_id = $1`, claimed[0].EventID).Scan(&reason))
	require.Equal(t, "broker down", reason)
}
