// Package stats turns raw training history into chart series and records.
//
// Every function here is pure: callers hand in a snapshot and get a fresh
// result back. Nothing is cached, so the functions are safe to call
// concurrently. Empty input always produces an empty result, never
// placeholder points.
package stats

import (
	"sort"
	"time"

	"example.com/coach/internal/domain"
)

const (
	// WeightTrendLimit caps the number of body-weight points charted.
	WeightTrendLimit = 30
	// VolumeHistoryLimit caps the number of sessions charted by volume.
	VolumeHistoryLimit = 10
	// ConsistencyWindowDays is the trailing window bucketed by Consistency.
	ConsistencyWindowDays = 28

	labelLayout = "2 Jan"
	day         = 24 * time.Hour
)

// ConsistencyLabels names the four weekly buckets, oldest first.
var ConsistencyLabels = [4]string{"Week 1", "Week 2", "Week 3", "This week"}

// Point is a labelled chart value.
type Point struct {
	Label string  `json:"name"`
	Value float64 `json:"value"`
}

// PersonalRecord is the heaviest completed lift across history.
type PersonalRecord struct {
	Exercise string `json:"exercise"`
	Weight   int    `json:"weight"`
}

// WeeklySummary aggregates the trailing seven days.
type WeeklySummary struct {
	Sessions int `json:"sessions"`
	Volume   int `json:"volume"`
}

// WeightTrend charts the most recent WeightTrendLimit measurements in
// ascending date order.
func WeightTrend(series []domain.WeightPoint) []Point {
	if len(series) == 0 {
		return []Point{}
	}
	sorted := append([]domain.WeightPoint(nil), series...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	if len(sorted) > WeightTrendLimit {
		sorted = sorted[len(sorted)-WeightTrendLimit:]
	}

	out := make([]Point, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, Point{Label: p.Date.Format(labelLayout), Value: p.Weight})
	}
	return out
}

// HasTrend reports whether a series holds enough points to draw a slope.
func HasTrend(points []Point) bool {
	return len(points) >= 2
}

// VolumeHistory charts the most recent VolumeHistoryLimit sessions in
// ascending date order.
func VolumeHistory(series []domain.VolumePoint) []Point {
	if len(series) == 0 {
		return []Point{}
	}
	sorted := append([]domain.VolumePoint(nil), series...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	if len(sorted) > VolumeHistoryLimit {
		sorted = sorted[len(sorted)-VolumeHistoryLimit:]
	}

	out := make([]Point, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, Point{Label: p.Date.Format(labelLayout), Value: float64(p.Volume)})
	}
	return out
}

// DaysAgo is the whole-day distance between t and now, rounded up.
func DaysAgo(t, now time.Time) int {
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}
	days := int(diff / day)
	if diff%day != 0 {
		days++
	}
	return days
}

// Consistency buckets session dates into four seven-day windows counted back
// from now. A session seven days old still counts as this week.
func Consistency(dates []time.Time, now time.Time) []Point {
	if len(dates) == 0 {
		return []Point{}
	}
	var weeks [4]int
	for _, d := range dates {
		switch n := DaysAgo(d, now); {
		case n <= 7:
			weeks[3]++
		case n <= 14:
			weeks[2]++
		case n <= 21:
			weeks[1]++
		case n <= ConsistencyWindowDays:
			weeks[0]++
		}
	}

	out := make([]Point, len(weeks))
	for i, count := range weeks {
		out[i] = Point{Label: ConsistencyLabels[i], Value: float64(count)}
	}
	return out
}

// SessionDates extracts the dates of the given sessions.
func SessionDates(sessions []domain.CompletedSession) []time.Time {
	out := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Date)
	}
	return out
}

// PersonalBest scans completed entries in order and returns the heaviest.
// The first entry reaching the maximum wins; nil means nothing was lifted.
func PersonalBest(sessions []domain.CompletedSession) *PersonalRecord {
	var best PersonalRecord
	for _, s := range sessions {
		for _, entry := range s.Exercises {
			if !entry.Completed {
				continue
			}
			if w := entry.EffectiveWeight(); w > best.Weight {
				best = PersonalRecord{Exercise: entry.Name, Weight: w}
			}
		}
	}
	if best.Weight <= 0 {
		return nil
	}
	return &best
}

// Weekly counts sessions and their volume over the trailing seven days.
func Weekly(sessions []domain.CompletedSession, now time.Time) WeeklySummary {
	cutoff := now.Add(-7 * day)
	var summary WeeklySummary
	for _, s := range sessions {
		if s.Date.Before(cutoff) || s.Date.After(now) {
			continue
		}
		summary.Sessions++
		summary.Volume += s.Volume
	}
	return summary
}
