package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQWriter moves an undeliverable outbox row into outbox_dlq.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write records msg in the DLQ and closes its outbox row in the same
// transaction, so the dispatcher never claims a dead-lettered event again.
// The DLQ manager re-inserts it into the outbox when it is retried.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	err := pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO outbox_dlq (user_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, partition_key, next_retry_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW())`,
			msg.UserID, msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.PartitionKey,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = $1 AND published_at IS NULL`, msg.EventID)
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox: dead-letter event %d: %w", msg.EventID, err)
	}
	return nil
}
