package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dgellow/jobfront/internal/idp"
	"github.com/dgellow/jobfront/internal/statetoken"
)

// ErrSessionNotFound is returned when a session doesn't exist or has expired
var ErrSessionNotFound = errors.New("session not found")

// ErrProfileNotFound is returned when no profile is linked for a user and provider
var ErrProfileNotFound = errors.New("profile not found")

// ErrPendingAuthNotFound is returned when a pending state nonce is unknown,
// already consumed, or expired
var ErrPendingAuthNotFound = errors.New("pending auth not found")

// Session is an established login created after a successful callback
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsExpired reports whether the session is past its expiry
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// LinkedProfile is a provider profile linked to an application user
type LinkedProfile struct {
	UserID    string      `json:"userId"`
	Provider  string      `json:"provider"`
	Profile   idp.Profile `json:"profile"`
	FirstSeen time.Time   `json:"firstSeen"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Storage combines the persistence needed by jobfront
type Storage interface {
	// Pending auth states for the stored state token mode
	statetoken.PendingStore

	// Linked provider profiles
	UpsertProfile(ctx context.Context, profile LinkedProfile) error
	GetProfile(ctx context.Context, userID, provider string) (*LinkedProfile, error)

	// Established sessions
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	RevokeSession(ctx context.Context, sessionID string) error

	// CleanupExpired purges expired sessions and pending states
	CleanupExpired(ctx context.Context) (int, error)

	Close() error
}
