package observability

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordSessionCompleted(t *testing.T) {
	before := testutil.ToFloat64(sessionsCompletedCounter.WithLabelValues("true"))
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	RecordSessionCompleted(ts, true)

	require.Equal(t, before+1, testutil.ToFloat64(sessionsCompletedCounter.WithLabelValues("true")))
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(sessionCompletedGauge))
}

func TestRecordSessionCompletedWithoutTimestampKeepsGauge(t *testing.T) {
	RecordSessionCompleted(time.Unix(1_700_000_000, 0), false)
	RecordSessionCompleted(time.Time{}, false)
	require.Equal(t, float64(1_700_000_000), testutil.ToFloat64(sessionCompletedGauge))
}

func TestDraftAndReadCounters(t *testing.T) {
	toggles := testutil.ToFloat64(draftMutationCounter.WithLabelValues("toggle"))
	ignored := testutil.ToFloat64(draftIgnoredCounter.WithLabelValues("edit"))
	reads := testutil.ToFloat64(readFailureCounter.WithLabelValues("weight"))
	failures := testutil.ToFloat64(persistFailureCounter)

	RecordDraftMutation("toggle")
	RecordDraftIgnored("edit")
	RecordReadFailure("weight")
	RecordPersistFailure()

	require.Equal(t, toggles+1, testutil.ToFloat64(draftMutationCounter.WithLabelValues("toggle")))
	require.Equal(t, ignored+1, testutil.ToFloat64(draftIgnoredCounter.WithLabelValues("edit")))
	require.Equal(t, reads+1, testutil.ToFloat64(readFailureCounter.WithLabelValues("weight")))
	require.Equal(t, failures+1, testutil.ToFloat64(persistFailureCounter))
}

func TestObserveRequest(t *testing.T) {
	var before dto.Metric
	require.NoError(t, httpRequestDuration.Write(&before))
	count := testutil.ToFloat64(httpRequestsCounter.WithLabelValues(http.MethodGet, "404"))

	ObserveRequest(http.MethodGet, http.StatusNotFound, 120*time.Millisecond)

	var after dto.Metric
	require.NoError(t, httpRequestDuration.Write(&after))
	require.Equal(t, before.GetHistogram().GetSampleCount()+1, after.GetHistogram().GetSampleCount())
	require.InDelta(t, before.GetHistogram().GetSampleSum()+0.12, after.GetHistogram().GetSampleSum(), 1e-9)
	require.Equal(t, count+1, testutil.ToFloat64(httpRequestsCounter.WithLabelValues(http.MethodGet, "404")))
}
