package service

import (
	"context"
	"fmt"

	"github.com/mindgate/mindgate/internal/domain"
)

// ListSessions returns the user's non-closed sessions, most recently active
// first.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// SwitchSession makes the given session active for the user.
func (s *Service) SwitchSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	return s.store.Switch(ctx, userID, sessionID)
}

// ContinueSession resumes the user's most recent session, creating one when
// none exists.
func (s *Service) ContinueSession(ctx context.Context, userID string) (*domain.Session, error) {
	return s.store.ContinueLatest(ctx, userID)
}
