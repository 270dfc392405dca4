// Package domain defines the coaching data model and the history service.
package domain

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a completed session cannot be located.
	ErrSessionNotFound = errors.New("session not found")
	// ErrProfileNotFound is returned when a user has no profile yet.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrFoodNotFound is returned when a food log entry cannot be located.
	ErrFoodNotFound = errors.New("food log entry not found")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service exposes history reads and deletes.
type Service struct {
	repo SessionRepository
}

// NewService constructs a Service.
func NewService(repo SessionRepository) *Service {
	return &Service{repo: repo}
}

// ListSessions pages through history, most recent first.
func (s *Service) ListSessions(ctx context.Context, userID string, cursor *Cursor, limit int) ([]CompletedSession, *Cursor, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.ListSessions(ctx, userID, cursor, limit)
}

// DeleteSession removes a completed session wholesale.
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionNotFound
	}
	return s.repo.DeleteSession(ctx, userID, sessionID)
}

// History reads the full history from the source of truth.
func (s *Service) History(ctx context.Context, userID string) ([]CompletedSession, error) {
	return s.repo.FetchHistory(ctx, userID)
}
