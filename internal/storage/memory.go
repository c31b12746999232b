package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dgellow/jobfront/internal/statetoken"
)

var _ Storage = (*MemoryStorage)(nil)

type pendingEntry struct {
	state     statetoken.PendingAuthState
	expiresAt time.Time
}

// MemoryStorage keeps everything in process memory. It is lost on restart.
type MemoryStorage struct {
	pending       sync.Map // map[nonce]pendingEntry
	profiles      map[string]*LinkedProfile
	profilesMutex sync.RWMutex
	sessions      map[string]*Session
	sessionsMutex sync.RWMutex
	now           func() time.Time
}

// NewMemoryStorage creates a new storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		profiles: make(map[string]*LinkedProfile),
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func profileKey(userID, provider string) string {
	return provider + ":" + userID
}

// StorePendingAuth stores a pending state under nonce
func (s *MemoryStorage) StorePendingAuth(_ context.Context, nonce string, state statetoken.PendingAuthState, expiresAt time.Time) error {
	s.pending.Store(nonce, pendingEntry{state: state, expiresAt: expiresAt})
	return nil
}

// ConsumePendingAuth retrieves a pending state by nonce (one-time use)
func (s *MemoryStorage) ConsumePendingAuth(_ context.Context, nonce string) (statetoken.PendingAuthState, error) {
	v, ok := s.pending.LoadAndDelete(nonce)
	if !ok {
		return statetoken.PendingAuthState{}, ErrPendingAuthNotFound
	}
	entry := v.(pendingEntry)
	if !s.now().Before(entry.expiresAt) {
		return statetoken.PendingAuthState{}, ErrPendingAuthNotFound
	}
	return entry.state, nil
}

// UpsertProfile creates or updates a linked profile
func (s *MemoryStorage) UpsertProfile(_ context.Context, profile LinkedProfile) error {
	s.profilesMutex.Lock()
	defer s.profilesMutex.Unlock()

	now := s.now()
	key := profileKey(profile.UserID, profile.Provider)
	if existing, ok := s.profiles[key]; ok {
		profile.FirstSeen = existing.FirstSeen
	} else if profile.FirstSeen.IsZero() {
		profile.FirstSeen = now
	}
	profile.UpdatedAt = now
	s.profiles[key] = &profile
	return nil
}

// GetProfile returns the profile linked for userID and provider
func (s *MemoryStorage) GetProfile(_ context.Context, userID, provider string) (*LinkedProfile, error) {
	s.profilesMutex.RLock()
	defer s.profilesMutex.RUnlock()

	profile, ok := s.profiles[profileKey(userID, provider)]
	if !ok {
		return nil, ErrProfileNotFound
	}
	copied := *profile
	return &copied, nil
}

// CreateSession stores a new session
func (s *MemoryStorage) CreateSession(_ context.Context, session Session) error {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()

	s.sessions[session.ID] = &session
	return nil
}

// GetSession returns a live session
func (s *MemoryStorage) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.sessionsMutex.RLock()
	defer s.sessionsMutex.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.IsExpired(s.now()) {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// RevokeSession deletes a session; revoking an unknown session is not an error
func (s *MemoryStorage) RevokeSession(_ context.Context, sessionID string) error {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// CleanupExpired removes expired sessions and pending states
func (s *MemoryStorage) CleanupExpired(_ context.Context) (int, error) {
	now := s.now()
	count := 0

	s.sessionsMutex.Lock()
	for id, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, id)
			count++
		}
	}
	s.sessionsMutex.Unlock()

	s.pending.Range(func(key, value any) bool {
		if !now.Before(value.(pendingEntry).expiresAt) {
			s.pending.Delete(key)
			count++
		}
		return true
	})

	return count, nil
}

// Close is a no-op for memory storage
func (s *MemoryStorage) Close() error {
	return nil
}
