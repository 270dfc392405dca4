package nutrition

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"example.com/coach/internal/domain"
)

// ConfirmXP is awarded for every confirmed meal.
const ConfirmXP = 15

// XPAwarder grants experience points.
type XPAwarder interface {
	AddXP(ctx context.Context, userID string, delta int) (int, error)
}

// Service keeps one review draft and one journal per user.
type Service struct {
	mu       sync.Mutex
	food     domain.FoodRepository
	profiles domain.ProfileRepository
	xp       XPAwarder
	drafts   map[string]*Draft
	journals map[string]*Journal
}

// NewService constructs a Service. xp may be nil.
func NewService(food domain.FoodRepository, profiles domain.ProfileRepository, xp XPAwarder) *Service {
	return &Service{
		food:     food,
		profiles: profiles,
		xp:       xp,
		drafts:   make(map[string]*Draft),
		journals: make(map[string]*Journal),
	}
}

// StartReview replaces the user's draft with a new analysis.
func (s *Service) StartReview(userID string, a Analysis) Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := NewDraft(a)
	s.drafts[userID] = d
	return d.Review()
}

// AdjustWeight rescales the user's draft.
func (s *Service) AdjustWeight(userID string, grams float64) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[userID]
	if !ok {
		return Review{}, ErrNoAnalysis
	}
	if err := d.SetWeight(grams); err != nil {
		return d.Review(), err
	}
	return d.Review(), nil
}

// CurrentReview returns the user's draft as it stands.
func (s *Service) CurrentReview(userID string) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[userID]
	if !ok {
		return Review{}, ErrNoAnalysis
	}
	return d.Review(), nil
}

// ConfirmReview logs the draft as a meal. The draft is dropped only once the
// write succeeds.
func (s *Service) ConfirmReview(ctx context.Context, userID, mealType string, day time.Time) (domain.FoodLog, error) {
	s.mu.Lock()
	d, ok := s.drafts[userID]
	s.mu.Unlock()
	if !ok {
		return domain.FoodLog{}, ErrNoAnalysis
	}

	review := d.Review()
	journal, err := s.Journal(ctx, userID, day)
	if err != nil {
		return domain.FoodLog{}, err
	}
	saved, err := journal.Log(ctx, domain.FoodLog{
		Date:     day,
		DishName: review.DishName,
		MealType: mealType,
		Calories: review.Calories,
		Protein:  review.Protein,
		Fat:      review.Fat,
		Carbs:    review.Carbs,
		Weight:   round(review.Weight),
	})
	if err != nil {
		return domain.FoodLog{}, err
	}

	s.mu.Lock()
	if s.drafts[userID] == d {
		delete(s.drafts, userID)
	}
	s.mu.Unlock()

	if s.xp != nil {
		if _, err := s.xp.AddXP(ctx, userID, ConfirmXP); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("nutrition: awarding xp failed")
		}
	}
	return saved, nil
}

// Journal returns the user's journal showing day, loading it when the day
// changes.
func (s *Service) Journal(ctx context.Context, userID string, day time.Time) (*Journal, error) {
	s.mu.Lock()
	j, ok := s.journals[userID]
	if !ok {
		j = NewJournal(s.food, userID)
		s.journals[userID] = j
	}
	s.mu.Unlock()

	j.mu.Lock()
	current := j.day
	j.mu.Unlock()
	if current.IsZero() || !current.Equal(domain.CalendarDay(day)) {
		if err := j.Refresh(ctx, day); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// Targets computes daily targets from the stored profile. A missing profile
// falls back to the default attributes.
func (s *Service) Targets(ctx context.Context, userID string) (Targets, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return CalculateTargets(domain.Profile{UserID: userID}), nil
	}
	if err != nil {
		return Targets{}, err
	}
	return CalculateTargets(*p), nil
}
