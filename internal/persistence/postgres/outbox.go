package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/coach/internal/events"
)

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	AggregateType  string
	PartitionKeyFn func(userID, aggregateID string) string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeWorkoutCompleted: {
		Topic:         "workout_events",
		AggregateType: "workout",
		PartitionKeyFn: func(userID, _ string) string {
			return userID
		},
	},
	events.TypeWorkoutDeleted: {
		Topic:         "workout_events",
		AggregateType: "workout",
		PartitionKeyFn: func(userID, _ string) string {
			return userID
		},
	},
}

// Topics lists every topic the outbox publishes to.
func Topics() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(eventCatalog))
	for _, meta := range eventCatalog {
		if _, ok := seen[meta.Topic]; ok {
			continue
		}
		seen[meta.Topic] = struct{}{}
		out = append(out, meta.Topic)
	}
	return out
}

func insertOutbox(ctx context.Context, tx pgx.Tx, userID, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		userID,
		meta.AggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.PartitionKeyFn(userID, aggregateID),
		body,
		dedupeKey,
	)
	return err
}
