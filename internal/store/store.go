// ABOUTME: Session persistence interface and the Session record shared by all backends
// ABOUTME: Implemented by SQLite, in-memory TTL and Redis stores

package store

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session doesn't exist or is expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session whose id is taken.
var ErrSessionExists = errors.New("session already exists")

// Session is an authenticated admin session. UserID is the user model's
// primary key in string form.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionStore persists sessions. Each call is atomic on its own.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	// GetSession returns ErrSessionNotFound for missing or expired sessions.
	GetSession(ctx context.Context, id string) (*Session, error)
	// DeleteSession reports whether a live session was removed.
	DeleteSession(ctx context.Context, id string) (bool, error)
	DeleteExpiredSessions(ctx context.Context) error
	Close() error
}
