package statetoken

import (
	"context"
	"fmt"
	"time"

	"github.com/dgellow/jobfront/internal/crypto"
)

// SignedTTL bounds how long a signed state token is accepted
const SignedTTL = 10 * time.Minute

// Signed is an HMAC-protected codec. The provider still sees an opaque string,
// but a client can no longer forge the userId or fromUrl it carries.
type Signed struct {
	signer crypto.TokenSigner
}

var _ Codec = (*Signed)(nil)

// NewSigned creates a signed codec keyed by key
func NewSigned(key []byte) *Signed {
	return &Signed{signer: crypto.NewTokenSigner(key, SignedTTL)}
}

func (s *Signed) Encode(_ context.Context, state PendingAuthState) (string, error) {
	token, err := s.signer.Sign(state)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return token, nil
}

func (s *Signed) Decode(_ context.Context, token string) (PendingAuthState, error) {
	var state PendingAuthState
	if err := s.signer.Verify(token, &state); err != nil {
		return PendingAuthState{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return state, nil
}
