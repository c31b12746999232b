package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/jobfront/internal/cookie"
	"github.com/dgellow/jobfront/internal/crypto"
	"github.com/dgellow/jobfront/internal/idp"
	jsonwriter "github.com/dgellow/jobfront/internal/json"
	"github.com/dgellow/jobfront/internal/log"
	"github.com/dgellow/jobfront/internal/storage"
	"github.com/google/uuid"
)

// ErrNoSession is returned when the request carries no usable session
var ErrNoSession = errors.New("no session")

// Manager creates, loads and revokes established sessions
type Manager struct {
	store     storage.Storage
	encryptor crypto.Encryptor
	ttl       time.Duration
	now       func() time.Time
}

// NewManager creates a session manager
func NewManager(store storage.Storage, encryptor crypto.Encryptor, ttl time.Duration) *Manager {
	return &Manager{
		store:     store,
		encryptor: encryptor,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Establish links profile to userID, records a session and writes the session cookie
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, userID string, profile *idp.Profile) (*storage.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if profile == nil {
		return nil, fmt.Errorf("profile is required")
	}

	err := m.store.UpsertProfile(ctx, storage.LinkedProfile{
		UserID:   userID,
		Provider: profile.ProviderType,
		Profile:  *profile,
	})
	if err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	now := m.now()
	sess := storage.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Provider:  profile.ProviderType,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	data, err := json.Marshal(BrowserCookie{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Provider:  sess.Provider,
		Expires:   sess.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling session cookie: %w", err)
	}
	encrypted, err := m.encryptor.Encrypt(string(data))
	if err != nil {
		return nil, fmt.Errorf("encrypting session cookie: %w", err)
	}
	cookie.SetSession(w, encrypted, m.ttl)

	log.LogInfoWithFields("session", "Session established", map[string]any{
		"session":  sess.ID,
		"user":     userID,
		"provider": sess.Provider,
	})
	return &sess, nil
}

// readCookie decrypts and parses the session cookie
func (m *Manager) readCookie(r *http.Request) (*BrowserCookie, error) {
	value, err := cookie.GetSession(r)
	if err != nil {
		return nil, ErrNoSession
	}
	decrypted, err := m.encryptor.Decrypt(value)
	if err != nil {
		return nil, fmt.Errorf("decrypting session cookie: %w", err)
	}
	var bc BrowserCookie
	if err := json.Unmarshal([]byte(decrypted), &bc); err != nil {
		return nil, fmt.Errorf("parsing session cookie: %w", err)
	}
	return &bc, nil
}

// Load resolves the request's session cookie into an identity
func (m *Manager) Load(r *http.Request) (*Identity, error) {
	bc, err := m.readCookie(r)
	if err != nil {
		return nil, err
	}
	if bc.IsExpired(m.now()) {
		return nil, fmt.Errorf("%w: cookie expired", ErrNoSession)
	}

	ctx := r.Context()
	sess, err := m.store.GetSession(ctx, bc.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: session revoked or expired", ErrNoSession)
		}
		return nil, err
	}

	linked, err := m.store.GetProfile(ctx, sess.UserID, sess.Provider)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	return &Identity{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Provider:  sess.Provider,
		Profile:   &linked.Profile,
	}, nil
}

// Middleware attaches the session identity to the request context when present.
// Requests without a valid session pass through unauthenticated.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := m.Load(r)
			if err != nil {
				if !errors.Is(err, ErrNoSession) || hasSessionCookie(r) {
					log.LogDebugWithFields("session", "Ignoring invalid session", map[string]any{
						"error": err.Error(),
						"path":  r.URL.Path,
					})
					cookie.ClearSession(w)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func hasSessionCookie(r *http.Request) bool {
	_, err := cookie.GetSession(r)
	return err == nil
}

// Logout revokes the current session and clears the session cookie
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if bc, err := m.readCookie(r); err == nil {
		if err := m.store.RevokeSession(r.Context(), bc.SessionID); err != nil {
			log.LogErrorWithFields("session", "Failed to revoke session", map[string]any{
				"session": bc.SessionID,
				"error":   err.Error(),
			})
			jsonwriter.WriteInternalServerError(w, "Failed to revoke session")
			return
		}
		log.LogInfoWithFields("session", "Session revoked", map[string]any{
			"session": bc.SessionID,
			"user":    bc.UserID,
		})
	}
	cookie.ClearSession(w)
	jsonwriter.WriteMessage(w, http.StatusOK, "Logged out")
}
