package statetoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/jobfront/internal/crypto"
)

// StoredTTL bounds how long a server-side pending state survives
const StoredTTL = 10 * time.Minute

// PendingStore keeps pending states server-side keyed by a random nonce
type PendingStore interface {
	StorePendingAuth(ctx context.Context, nonce string, state PendingAuthState, expiresAt time.Time) error
	// ConsumePendingAuth returns and deletes the state; a nonce resolves at most once
	ConsumePendingAuth(ctx context.Context, nonce string) (PendingAuthState, error)
}

// Stored sends only a nonce through the provider and keeps the state in a PendingStore
type Stored struct {
	store PendingStore
	ttl   time.Duration
	now   func() time.Time
}

var _ Codec = (*Stored)(nil)

func NewStored(store PendingStore) *Stored {
	return &Stored{store: store, ttl: StoredTTL, now: time.Now}
}

func (s *Stored) Encode(ctx context.Context, state PendingAuthState) (string, error) {
	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", err
	}
	if err := s.store.StorePendingAuth(ctx, nonce, state, s.now().Add(s.ttl)); err != nil {
		return "", fmt.Errorf("store pending state: %w", err)
	}
	return nonce, nil
}

func (s *Stored) Decode(ctx context.Context, token string) (PendingAuthState, error) {
	if token == "" {
		return PendingAuthState{}, fmt.Errorf("%w: empty nonce", ErrDecode)
	}
	state, err := s.store.ConsumePendingAuth(ctx, token)
	if err != nil {
		return PendingAuthState{}, errors.Join(ErrDecode, err)
	}
	return state, nil
}
