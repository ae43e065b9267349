// Package store persists sessions and user settings.
package store

import (
	"context"
	"time"

	"github.com/mindgate/mindgate/internal/domain"
)

// Store is the persistence interface for sessions and settings.
type Store interface {
	// GetOrCreateActive returns the user's active session, creating one if
	// none exists. Creation applies the session cap.
	GetOrCreateActive(ctx context.Context, userID string) (*domain.Session, error)

	// GetSession retrieves a session by ID. Returns nil, nil when not found.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// Switch makes the given session the user's active one. The previously
	// active session is demoted to idle in the same transaction. Returns
	// ErrSessionNotFound when the session does not exist, belongs to another
	// user, or is closed.
	Switch(ctx context.Context, userID, sessionID string) (*domain.Session, error)

	// ContinueLatest promotes the user's most-recently-active non-closed
	// session, or creates a fresh one when the user has none.
	ContinueLatest(ctx context.Context, userID string) (*domain.Session, error)

	// UpdateAfterTurn records the conversation handle and activity time
	// after a completed turn.
	UpdateAfterTurn(ctx context.Context, sessionID, externalID string, at time.Time) error

	// ListSessions returns the user's non-closed sessions, most recently
	// active first.
	ListSessions(ctx context.Context, userID string) ([]domain.Session, error)

	// GetSettings returns the user's settings, falling back to defaults
	// when the user has never saved any.
	GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error)

	// UpdateSettings upserts the user's settings. Validation happens in the
	// service layer; the store persists what it is given.
	UpdateSettings(ctx context.Context, settings *domain.UserSettings) error

	Close() error
}
