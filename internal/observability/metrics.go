package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "coach",
		Subsystem: "sessions",
		Name:      "last_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session persisted to history.",
	})
	sessionsCompletedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "sessions",
		Name:      "completed_total",
		Help:      "Completed sessions, labelled by whether every entry was done.",
	}, []string{"full"})
	persistFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "sessions",
		Name:      "persist_failures_total",
		Help:      "Session upserts that failed and left the draft in place.",
	})
	draftMutationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "draft",
		Name:      "mutations_total",
		Help:      "Draft mutations grouped by kind.",
	}, []string{"kind"})
	draftIgnoredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "draft",
		Name:      "ignored_mutations_total",
		Help:      "Mutations dropped because the draft was finalized or locked.",
	}, []string{"kind"})
	readFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "progress",
		Name:      "read_failures_total",
		Help:      "History reads that degraded to an empty series.",
	}, []string{"series"})
	httpRequestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "status"})
	httpRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "coach",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		sessionCompletedGauge,
		sessionsCompletedCounter,
		persistFailureCounter,
		draftMutationCounter,
		draftIgnoredCounter,
		readFailureCounter,
		httpRequestsCounter,
		httpRequestDuration,
	)
}

// RecordSessionCompleted updates the completion watermark and counter.
func RecordSessionCompleted(ts time.Time, full bool) {
	label := "false"
	if full {
		label = "true"
	}
	sessionsCompletedCounter.WithLabelValues(label).Inc()
	if ts.IsZero() {
		return
	}
	sessionCompletedGauge.Set(float64(ts.Unix()))
}

// RecordPersistFailure counts a failed session upsert.
func RecordPersistFailure() {
	persistFailureCounter.Inc()
}

// RecordDraftMutation counts an applied draft mutation.
func RecordDraftMutation(kind string) {
	draftMutationCounter.WithLabelValues(kind).Inc()
}

// RecordDraftIgnored counts a mutation dropped by a finalized or locked draft.
func RecordDraftIgnored(kind string) {
	draftIgnoredCounter.WithLabelValues(kind).Inc()
}

// RecordReadFailure counts a series read that fell back to empty.
func RecordReadFailure(series string) {
	readFailureCounter.WithLabelValues(series).Inc()
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method string, status int, elapsed time.Duration) {
	httpRequestsCounter.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.Observe(elapsed.Seconds())
}
