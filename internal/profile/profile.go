// Package profile manages athlete profiles, experience points and the daily
// check-in.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"example.com/coach/internal/completion"
	"example.com/coach/internal/domain"
)

const (
	// XPPerLevel is the experience needed for each level.
	XPPerLevel = 500
	// CheckInXP is awarded for every daily check-in.
	CheckInXP = 10

	defaultSleepQuality = "Good"
)

// ErrInvalidCheckIn is returned for out-of-range check-in values.
var ErrInvalidCheckIn = errors.New("invalid check-in")

var titles = []struct {
	level int
	title string
}{
	{50, "Titan"},
	{20, "Cyborg"},
	{10, "Machine"},
	{5, "Amateur"},
	{1, "Novice"},
}

// Level describes where an XP total sits on the level ladder.
type Level struct {
	Level       int     `json:"level"`
	Title       string  `json:"title"`
	Progress    float64 `json:"progress"`
	NextLevelXP int     `json:"next_level_xp"`
}

// LevelFor returns the level reached with xp.
func LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// LevelInfo reports level, title and progress towards the next level.
func LevelInfo(xp int) Level {
	if xp < 0 {
		xp = 0
	}
	level := LevelFor(xp)
	title := titles[len(titles)-1].title
	for _, t := range titles {
		if level >= t.level {
			title = t.title
			break
		}
	}
	inLevel := xp % XPPerLevel
	return Level{
		Level:       level,
		Title:       title,
		Progress:    float64(inLevel) / XPPerLevel * 100,
		NextLevelXP: XPPerLevel - inLevel,
	}
}

// Award is the outcome of granting experience.
type Award struct {
	XP        int  `json:"xp"`
	Level     int  `json:"level"`
	LeveledUp bool `json:"leveled_up"`
}

// CheckIn is the morning questionnaire.
type CheckIn struct {
	SleepHours   float64 `json:"sleep_hours"`
	SleepQuality string  `json:"sleep_quality"`
	EnergyLevel  int     `json:"energy_level"`
	StressLevel  *int    `json:"stress_level,omitempty"`
	Weight       float64 `json:"weight,omitempty"`
}

// Validate checks ranges. Energy and stress are percentages.
func (c CheckIn) Validate() error {
	switch {
	case c.SleepHours < 0 || c.SleepHours > 24:
		return fmt.Errorf("%w: sleep_hours %v", ErrInvalidCheckIn, c.SleepHours)
	case c.EnergyLevel < 0 || c.EnergyLevel > 100:
		return fmt.Errorf("%w: energy_level %d", ErrInvalidCheckIn, c.EnergyLevel)
	case c.StressLevel != nil && (*c.StressLevel < 0 || *c.StressLevel > 100):
		return fmt.Errorf("%w: stress_level %d", ErrInvalidCheckIn, *c.StressLevel)
	case c.Weight < 0:
		return fmt.Errorf("%w: weight %v", ErrInvalidCheckIn, c.Weight)
	}
	return nil
}

// Repository is what the profile service persists through.
type Repository interface {
	domain.ProfileRepository
	domain.MetricsRepository
}

// Service owns profile writes.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the stored profile.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// Save stores p, keeping the XP already earned.
func (s *Service) Save(ctx context.Context, p domain.Profile) error {
	existing, err := s.repo.GetProfile(ctx, p.UserID)
	switch {
	case err == nil:
		p.XP = existing.XP
	case errors.Is(err, domain.ErrProfileNotFound):
		p.XP = 0
	default:
		return err
	}
	return s.repo.SaveProfile(ctx, p)
}

// AddXP grants delta experience and returns the new total.
func (s *Service) AddXP(ctx context.Context, userID string, delta int) (int, error) {
	award, err := s.Award(ctx, userID, delta)
	return award.XP, err
}

// Award grants delta experience and reports whether a level was gained.
func (s *Service) Award(ctx context.Context, userID string, delta int) (Award, error) {
	xp, err := s.repo.AddXP(ctx, userID, delta)
	if err != nil {
		return Award{}, fmt.Errorf("add xp: %w", err)
	}
	level := LevelFor(xp)
	return Award{XP: xp, Level: level, LeveledUp: level > LevelFor(xp-delta)}, nil
}

// SubmitCheckIn stores today's metrics and, for a positive weight, the body
// measurement and profile weight. It then grants CheckInXP.
func (s *Service) SubmitCheckIn(ctx context.Context, userID string, in CheckIn) (Award, error) {
	if err := in.Validate(); err != nil {
		return Award{}, err
	}
	today := domain.CalendarDay(s.now())

	metric := domain.DailyMetric{
		UserID:       userID,
		Date:         today,
		SleepHours:   in.SleepHours,
		SleepQuality: in.SleepQuality,
		EnergyLevel:  in.EnergyLevel,
		StressLevel:  in.StressLevel,
	}
	if in.Weight > 0 {
		w := in.Weight
		metric.Weight = &w
	}
	if err := s.repo.UpsertDailyMetric(ctx, metric); err != nil {
		return Award{}, fmt.Errorf("save daily metric: %w", err)
	}

	if in.Weight > 0 {
		if err := s.RecordWeight(ctx, userID, in.Weight); err != nil {
			return Award{}, err
		}
	}
	return s.Award(ctx, userID, CheckInXP)
}

// RecordWeight stores a body measurement for today and mirrors it on the
// profile.
func (s *Service) RecordWeight(ctx context.Context, userID string, weight float64) error {
	if weight <= 0 {
		return fmt.Errorf("%w: weight %v", ErrInvalidCheckIn, weight)
	}
	m := domain.BodyMeasurement{UserID: userID, Date: domain.CalendarDay(s.now()), Weight: weight}
	if err := s.repo.UpsertBodyMeasurement(ctx, m); err != nil {
		return fmt.Errorf("save body measurement: %w", err)
	}

	p, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	p.Weight = weight
	if err := s.repo.SaveProfile(ctx, *p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// UpdateEnergy overwrites today's energy level and keeps any sleep data
// already recorded.
func (s *Service) UpdateEnergy(ctx context.Context, userID string, energy int) error {
	if energy < 0 || energy > 100 {
		return fmt.Errorf("%w: energy_level %d", ErrInvalidCheckIn, energy)
	}
	today := domain.CalendarDay(s.now())
	metric := domain.DailyMetric{UserID: userID, Date: today, SleepQuality: defaultSleepQuality}

	existing, err := s.repo.GetDailyMetric(ctx, userID, today)
	if err != nil {
		return fmt.Errorf("load daily metric: %w", err)
	}
	if existing != nil {
		metric = *existing
		if metric.SleepQuality == "" {
			metric.SleepQuality = defaultSleepQuality
		}
	}
	metric.EnergyLevel = energy
	return s.repo.UpsertDailyMetric(ctx, metric)
}

// NeedsCheckIn reports whether today has no metrics yet.
func (s *Service) NeedsCheckIn(ctx context.Context, userID string) (bool, error) {
	m, err := s.repo.GetDailyMetric(ctx, userID, domain.CalendarDay(s.now()))
	if err != nil {
		return false, err
	}
	return m == nil, nil
}

// SessionCompleted grants the experience earned by a finalized session.
func (s *Service) SessionCompleted(ctx context.Context, result completion.Result) error {
	award, err := s.Award(ctx, result.UserID, result.XP)
	if err != nil {
		return err
	}
	if award.LeveledUp {
		log.WithFields(log.Fields{"user_id": result.UserID, "level": award.Level}).Info("profile: level up")
	}
	return nil
}

var _ completion.Listener = (*Service)(nil)
