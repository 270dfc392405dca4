// Package progress assembles the read side: chart series, records and the
// plain-text context handed to the coaching model.
//
// Remote read failures never surface as errors here. A failed series is
// logged, counted and replaced by an empty one so callers render the empty
// state instead of an error page.
package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"example.com/coach/internal/domain"
	"example.com/coach/internal/observability"
	"example.com/coach/internal/stats"
)

const (
	recentSessions   = 3
	recentVolumes    = 3
	scheduleLookhead = 7
)

// Repository is the read surface used by Service.
type Repository interface {
	FetchHistory(ctx context.Context, userID string) ([]domain.CompletedSession, error)
	VolumeSeries(ctx context.Context, userID string, limit int) ([]domain.VolumePoint, error)
	SessionsSince(ctx context.Context, userID string, since time.Time) ([]domain.CompletedSession, error)
	WeightSeries(ctx context.Context, userID string, limit int) ([]domain.WeightPoint, error)
	Upcoming(ctx context.Context, userID string, from, to time.Time) ([]domain.ScheduledWorkout, error)
}

// Charts holds the three progress charts.
type Charts struct {
	Weight         []stats.Point `json:"weight"`
	HasWeightTrend bool          `json:"has_weight_trend"`
	Volume         []stats.Point `json:"volume"`
	Consistency    []stats.Point `json:"consistency"`
}

// Overview is everything the progress screen shows.
type Overview struct {
	Charts
	Record *stats.PersonalRecord `json:"personal_record"`
	Weekly stats.WeeklySummary   `json:"weekly"`
}

// Service reads series from the repository and aggregates them.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger log.FieldLogger
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now, logger: log.StandardLogger()}
}

// Charts fetches and charts the weight, volume and consistency series.
func (s *Service) Charts(ctx context.Context, userID string) Charts {
	now := s.now()
	weights := read(ctx, s, userID, "weight", func(ctx context.Context) ([]domain.WeightPoint, error) {
		return s.repo.WeightSeries(ctx, userID, stats.WeightTrendLimit)
	})
	volumes := read(ctx, s, userID, "volume", func(ctx context.Context) ([]domain.VolumePoint, error) {
		return s.repo.VolumeSeries(ctx, userID, stats.VolumeHistoryLimit)
	})
	recent := read(ctx, s, userID, "consistency", func(ctx context.Context) ([]domain.CompletedSession, error) {
		return s.repo.SessionsSince(ctx, userID, now.AddDate(0, 0, -stats.ConsistencyWindowDays))
	})

	weight := stats.WeightTrend(weights)
	return Charts{
		Weight:         weight,
		HasWeightTrend: stats.HasTrend(weight),
		Volume:         stats.VolumeHistory(volumes),
		Consistency:    stats.Consistency(stats.SessionDates(recent), now),
	}
}

// PersonalRecord returns the heaviest completed lift, or nil.
func (s *Service) PersonalRecord(ctx context.Context, userID string) *stats.PersonalRecord {
	return stats.PersonalBest(s.history(ctx, userID))
}

// WeeklySummary counts the trailing seven days.
func (s *Service) WeeklySummary(ctx context.Context, userID string) stats.WeeklySummary {
	return stats.Weekly(s.history(ctx, userID), s.now())
}

// Overview combines charts, record and weekly summary. History is read once.
func (s *Service) Overview(ctx context.Context, userID string) Overview {
	history := s.history(ctx, userID)
	return Overview{
		Charts: s.Charts(ctx, userID),
		Record: stats.PersonalBest(history),
		Weekly: stats.Weekly(history, s.now()),
	}
}

// CoachingContext summarises recent training for the coaching model.
func (s *Service) CoachingContext(ctx context.Context, userID string) string {
	now := s.now()
	charts := s.Charts(ctx, userID)
	history := s.history(ctx, userID)
	upcoming := read(ctx, s, userID, "schedule", func(ctx context.Context) ([]domain.ScheduledWorkout, error) {
		return s.repo.Upcoming(ctx, userID, now, now.AddDate(0, 0, scheduleLookhead))
	})

	var b strings.Builder
	b.WriteString("STATS:\n")
	if len(charts.Weight) > 0 {
		fmt.Fprintf(&b, "- Current weight: %gkg (start: %gkg)\n", charts.Weight[len(charts.Weight)-1].Value, charts.Weight[0].Value)
	} else {
		b.WriteString("- Current weight: unknown\n")
	}
	thisWeek := 0
	if len(charts.Consistency) == len(stats.ConsistencyLabels) {
		thisWeek = int(charts.Consistency[len(charts.Consistency)-1].Value)
	}
	fmt.Fprintf(&b, "- Workouts this week: %d\n", thisWeek)
	vols := charts.Volume
	if len(vols) > recentVolumes {
		vols = vols[len(vols)-recentVolumes:]
	}
	parts := make([]string, 0, len(vols))
	for _, v := range vols {
		parts = append(parts, fmt.Sprintf("%gkg", v.Value))
	}
	fmt.Fprintf(&b, "- Recent volumes: %s\n", strings.Join(parts, ", "))
	if pr := stats.PersonalBest(history); pr != nil {
		fmt.Fprintf(&b, "- Personal record: %s %dkg\n", pr.Exercise, pr.Weight)
	}

	b.WriteString("\nRECENT SESSIONS:\n")
	if len(history) == 0 {
		b.WriteString("No sessions yet.\n")
	}
	for i, sess := range history {
		if i == recentSessions {
			break
		}
		lifts := make([]string, 0, len(sess.Exercises))
		for _, e := range sess.Exercises {
			if !e.Completed {
				continue
			}
			lifts = append(lifts, fmt.Sprintf("%s (%skg x %s)", e.Name, e.ActualWeight.Or(e.Weight), e.ActualReps.Or(e.Reps)))
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", sess.Date.Format(time.DateOnly), sess.Title, strings.Join(lifts, ", "))
	}

	b.WriteString("\nSCHEDULE:\n")
	if len(upcoming) == 0 {
		b.WriteString("No workouts scheduled.\n")
	}
	for _, w := range upcoming {
		names := "no details"
		if w.Plan != nil && len(w.Plan.Exercises) > 0 {
			list := make([]string, 0, len(w.Plan.Exercises))
			for _, e := range w.Plan.Exercises {
				list = append(list, e.Name)
			}
			names = strings.Join(list, ", ")
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", w.Date.Format(time.DateOnly), w.Title, names)
	}
	return b.String()
}

func (s *Service) history(ctx context.Context, userID string) []domain.CompletedSession {
	return read(ctx, s, userID, "history", func(ctx context.Context) ([]domain.CompletedSession, error) {
		return s.repo.FetchHistory(ctx, userID)
	})
}

func read[T any](ctx context.Context, s *Service, userID, series string, fetch func(context.Context) ([]T, error)) []T {
	ctx, span := observability.Tracer.Start(ctx, "progress."+series)
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	out, err := fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordReadFailure(series)
		s.logger.WithError(err).WithFields(log.Fields{"user_id": userID, "series": series}).Warn("progress: read failed, showing empty series")
		return []T{}
	}
	if out == nil {
		return []T{}
	}
	return out
}
