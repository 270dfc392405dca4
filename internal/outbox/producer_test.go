package outbox

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestKafkaProducerReusesWriterPerTopic(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := NewKafkaProducer([]string{"k1:9092"}, WithBatchTimeout(50*time.Millisecond), WithProducerLogger(logger))

	first := p.writerForTopic("workout_events")
	require.Same(t, first, p.writerForTopic("workout_events"))
	require.NotSame(t, first, p.writerForTopic("audit"))

	require.Equal(t, "workout_events", first.Topic)
	require.Equal(t, 50*time.Millisecond, first.BatchTimeout)
	require.Equal(t, kafka.RequireAll, first.RequiredAcks)
	require.IsType(t, &kafka.Hash{}, first.Balancer)
	require.NotNil(t, first.ErrorLogger)

	require.NoError(t, p.Close())
	require.Empty(t, p.writers)
}

func TestKafkaProducerDefaults(t *testing.T) {
	p := NewKafkaProducer([]string{"k1:9092"}, WithBatchTimeout(0))
	require.Equal(t, defaultBatchTimeout, p.writerForTopic("workout_events").BatchTimeout)
	require.NoError(t, p.Close())
}
