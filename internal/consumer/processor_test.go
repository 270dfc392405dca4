package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func workoutMessage(offset int64, eventType string, payload []byte) kafka.Message {
	return kafka.Message{
		Topic:     "workout_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "user_id", Value: []byte("user-1")},
			{Key: "event_id", Value: []byte("evt-1")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"session_id":"abc","title":"Push Day"}`)
	reader := &stubReader{
		messages: []kafka.Message{workoutMessage(10, "workout.completed", payload)},
		after:    contextCanceled,
	}
	handler := &stubHandler{}
	logger, _ := test.NewNullLogger()
	before := testutil.ToFloat64(processedCounter.WithLabelValues("workout_events", "workout.completed"))

	processor := NewProcessor(reader, handler, WithLogger(logger))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "workout.completed", handler.last.EventType)
	require.Equal(t, "user-1", handler.last.UserID)
	require.Equal(t, "evt-1", handler.last.EventID)
	require.Equal(t, "workout_events:0:10", handler.last.Key())
	require.JSONEq(t, string(payload), string(handler.last.Payload))
	require.Equal(t, before+1, testutil.ToFloat64(processedCounter.WithLabelValues("workout_events", "workout.completed")))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{workoutMessage(20, "workout.deleted", []byte(`{"session_id":"def"}`))},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}
	logger, hook := test.NewNullLogger()

	processor := NewProcessor(reader, handler, WithLogger(logger))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
	require.NotNil(t, hook.LastEntry())
	require.Equal(t, "handler error", hook.LastEntry().Message)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	missingType := workoutMessage(30, "", []byte(`{}`))
	badJSON := workoutMessage(31, "workout.completed", []byte(`{not json`))
	reader := &stubReader{
		messages: []kafka.Message{missingType, badJSON},
		after:    contextCanceled,
	}
	handler := &stubHandler{}
	logger, _ := test.NewNullLogger()
	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("workout_events"))

	err := NewProcessor(reader, handler, WithLogger(logger)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
	require.Equal(t, before+2, testutil.ToFloat64(decodeErrorCounter.WithLabelValues("workout_events")))
}

func TestProcessorContinuesAfterFetchError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		messages:  []kafka.Message{workoutMessage(40, "workout.completed", []byte(`{}`))},
		after:     contextCanceled,
	}
	handler := &stubHandler{}
	logger, _ := test.NewNullLogger()

	err := NewProcessor(reader, handler, WithLogger(logger)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

type stubReader struct {
	fetchErrs   []error
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}
