package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu           sync.Mutex
	pending      []Message
	published    []int64
	deadLettered []string
}

func (s *fakeStore) claim(_ context.Context, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.pending))
	out := s.pending[:n]
	s.pending = s.pending[n:]
	return out, nil
}

func (s *fakeStore) markPublished(_ context.Context, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range messages {
		s.published = append(s.published, m.EventID)
	}
	return nil
}

func (s *fakeStore) deadLetter(_ context.Context, msg Message, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLettered = append(s.deadLettered, reason)
	return nil
}

type fakeWriter struct {
	mu      sync.Mutex
	err     error
	written map[string][]kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.written == nil {
		w.written = make(map[string][]kafka.Message)
	}
	w.written[topic] = append(w.written[topic], msgs...)
	return nil
}

func message(id int64, topic string) Message {
	return Message{
		EventID:      id,
		UserID:       "u1",
		EventType:    "workout.completed",
		Topic:        topic,
		PartitionKey: "u1",
		Payload:      []byte(`{"session_id":"s1"}`),
	}
}

func TestProcessBatchDeliversAndMarksPublished(t *testing.T) {
	store := &fakeStore{pending: []Message{message(1, "workout_events"), message(2, "workout_events")}}
	writer := &fakeWriter{}
	d := newDispatcher(store, writer, time.Millisecond, 10)
	before := testutil.ToFloat64(deliveredCounter)

	require.NoError(t, d.processBatch(context.Background()))

	require.Equal(t, []int64{1, 2}, store.published)
	require.Len(t, writer.written["workout_events"], 2)
	record := writer.written["workout_events"][0]
	require.Equal(t, []byte("u1"), record.Key)
	require.JSONEq(t, `{"session_id":"s1"}`, string(record.Value))
	require.Equal(t, "workout.completed", string(record.Headers[0].Value))
	require.Equal(t, "1", string(record.Headers[2].Value))
	require.Equal(t, before+2, testutil.ToFloat64(deliveredCounter))
}

func TestProcessBatchRoutesFailuresToDLQ(t *testing.T) {
	store := &fakeStore{pending: []Message{message(7, "workout_events")}}
	writer := &fakeWriter{err: errors.New("broker unavailable")}
	d := newDispatcher(store, writer, time.Millisecond, 10)
	before := testutil.ToFloat64(dlqCounter.WithLabelValues("workout_events"))

	require.NoError(t, d.processBatch(context.Background()))

	require.Equal(t, []int64{7}, store.published)
	require.Equal(t, []string{"broker unavailable (topic=workout_events)"}, store.deadLettered)
	require.Equal(t, before+1, testutil.ToFloat64(dlqCounter.WithLabelValues("workout_events")))
}

func TestProcessBatchRejectsMissingTopic(t *testing.T) {
	store := &fakeStore{pending: []Message{message(3, "")}}
	d := newDispatcher(store, &fakeWriter{}, time.Millisecond, 10)

	require.NoError(t, d.processBatch(context.Background()))
	require.Len(t, store.deadLettered, 1)
}

func TestStartStopsOnCancel(t *testing.T) {
	store := &fakeStore{pending: []Message{message(1, "workout_events")}}
	writer := &fakeWriter{}
	d := newDispatcher(store, writer, 5*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.published) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	d.Wait()
}

func TestBackoffDelay(t *testing.T) {
	require.Equal(t, time.Minute, backoffDelay(time.Minute, 1))
	require.Equal(t, 4*time.Minute, backoffDelay(time.Minute, 3))
	require.Equal(t, time.Hour, backoffDelay(time.Minute, 8))
	require.Equal(t, time.Hour, backoffDelay(time.Minute, 64))
}
