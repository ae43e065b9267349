package store

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mindgate/mindgate/internal/domain"
)

// userStripes is the size of the per-user mutex table. Switching and
// creation for one user always serialize on the same stripe, which keeps
// the single-active-session invariant without a global lock.
const userStripes = 64

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	sessionCap int
	userMu     [userStripes]sync.Mutex
}

// NewSQLiteStore creates a new SQLite store. sessionCap bounds the number of
// non-closed sessions a single user may accumulate.
func NewSQLiteStore(dsn string, sessionCap int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, sessionCap: sessionCap}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			external_id TEXT,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_active DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, status, last_active)`,
		`CREATE TABLE IF NOT EXISTS settings (
			user_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			model TEXT,
			language TEXT
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &s.userMu[h.Sum32()%userStripes]
}

func newSessionID() string {
	return "sess_" + uuid.NewString()[:8]
}

// GetOrCreateActive returns the user's active session, creating one if none
// exists.
func (s *SQLiteStore) GetOrCreateActive(ctx context.Context, userID string) (*domain.Session, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.getActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}
	return s.createActive(ctx, userID)
}

func (s *SQLiteStore) getActive(ctx context.Context, userID string) (*domain.Session, error) {
	return s.queryOne(ctx,
		`SELECT session_id, user_id, external_id, mode, status, created_at, last_active
		 FROM sessions WHERE user_id = ? AND status = ?`,
		userID, domain.SessionStatusActive)
}

// createActive inserts a fresh active session, evicting the oldest idle
// sessions when the user is at the cap. Callers hold the user stripe lock.
func (s *SQLiteStore) createActive(ctx context.Context, userID string) (*domain.Session, error) {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.evictIdle(ctx, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &domain.Session{
		SessionID:  newSessionID(),
		UserID:     userID,
		Mode:       settings.Mode,
		Status:     domain.SessionStatusActive,
		CreatedAt:  now,
		LastActive: now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, external_id, mode, status, created_at, last_active)
		 VALUES (?, ?, NULL, ?, ?, ?, ?)`,
		session.SessionID, session.UserID, session.Mode, session.Status, session.CreatedAt, session.LastActive)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// evictIdle closes the least-recently-active idle sessions until the user is
// below the cap. The active session is never evicted.
func (s *SQLiteStore) evictIdle(ctx context.Context, userID string) error {
	if s.sessionCap <= 0 {
		return nil
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = ? AND status != ?`,
		userID, domain.SessionStatusClosed).Scan(&count)
	if err != nil {
		return err
	}
	excess := count - s.sessionCap + 1
	if excess <= 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE session_id IN (
			SELECT session_id FROM sessions
			WHERE user_id = ? AND status = ?
			ORDER BY last_active ASC LIMIT ?
		)`,
		domain.SessionStatusClosed, userID, domain.SessionStatusIdle, excess)
	return err
}

// Switch makes the given session the user's active one.
func (s *SQLiteStore) Switch(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var status domain.SessionStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM sessions WHERE session_id = ? AND user_id = ?`,
		sessionID, userID).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if status == domain.SessionStatusClosed {
		return nil, fmt.Errorf("%w: %s is closed", domain.ErrSessionNotFound, sessionID)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE user_id = ? AND status = ? AND session_id != ?`,
		domain.SessionStatusIdle, userID, domain.SessionStatusActive, sessionID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, last_active = ? WHERE session_id = ?`,
		domain.SessionStatusActive, now, sessionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSession(ctx, sessionID)
}

// ContinueLatest promotes the most-recently-active non-closed session, or
// creates a fresh one.
func (s *SQLiteStore) ContinueLatest(ctx context.Context, userID string) (*domain.Session, error) {
	mu := s.userLock(userID)
	mu.Lock()

	latest, err := s.queryOne(ctx,
		`SELECT session_id, user_id, external_id, mode, status, created_at, last_active
		 FROM sessions WHERE user_id = ? AND status != ?
		 ORDER BY last_active DESC LIMIT 1`,
		userID, domain.SessionStatusClosed)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if latest == nil {
		defer mu.Unlock()
		return s.createActive(ctx, userID)
	}
	mu.Unlock()

	if latest.Status == domain.SessionStatusActive {
		return latest, nil
	}
	return s.Switch(ctx, userID, latest.SessionID)
}

// GetSession retrieves a session by ID. Returns nil, nil when not found.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.queryOne(ctx,
		`SELECT session_id, user_id, external_id, mode, status, created_at, last_active
		 FROM sessions WHERE session_id = ?`,
		sessionID)
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, args ...interface{}) (*domain.Session, error) {
	var session domain.Session
	var externalID sql.NullString
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&session.SessionID, &session.UserID, &externalID, &session.Mode,
		&session.Status, &session.CreatedAt, &session.LastActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if externalID.Valid {
		session.ExternalID = externalID.String
	}
	return &session, nil
}

// UpdateAfterTurn records the conversation handle and activity time after a
// completed turn.
func (s *SQLiteStore) UpdateAfterTurn(ctx context.Context, sessionID, externalID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET external_id = ?, last_active = ? WHERE session_id = ?`,
		externalID, at.UTC(), sessionID)
	return err
}

// ListSessions returns the user's non-closed sessions, most recently active
// first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, external_id, mode, status, created_at, last_active
		 FROM sessions WHERE user_id = ? AND status != ?
		 ORDER BY last_active DESC`,
		userID, domain.SessionStatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var session domain.Session
		var externalID sql.NullString
		if err := rows.Scan(&session.SessionID, &session.UserID, &externalID, &session.Mode,
			&session.Status, &session.CreatedAt, &session.LastActive); err != nil {
			return nil, err
		}
		if externalID.Valid {
			session.ExternalID = externalID.String
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// GetSettings returns the user's settings, falling back to defaults when the
// user has never saved any.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	var settings domain.UserSettings
	var model, language sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, mode, model, language FROM settings WHERE user_id = ?`,
		userID).Scan(&settings.UserID, &settings.Mode, &model, &language)
	if err == sql.ErrNoRows {
		defaults := domain.DefaultSettings(userID)
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	if model.Valid {
		settings.Model = model.String
	}
	if language.Valid {
		settings.Language = language.String
	}
	return &settings, nil
}

// UpdateSettings upserts the user's settings.
func (s *SQLiteStore) UpdateSettings(ctx context.Context, settings *domain.UserSettings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (user_id, mode, model, language) VALUES (?, ?, ?, ?)`,
		settings.UserID, settings.Mode, nullString(settings.Model), nullString(settings.Language))
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
