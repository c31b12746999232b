// Package statetoken encodes the pending LinkedIn link ({userId, fromUrl}) into
// the opaque OAuth state parameter and decodes it again on callback.
package statetoken

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDecode wraps every failure to turn a state token back into a PendingAuthState.
// Callers treat it as non-fatal and fall back to a default redirect target.
var ErrDecode = errors.New("state token decode failed")

// PendingAuthState correlates a provider callback with the request that started it.
// It only lives for one redirect round trip.
type PendingAuthState struct {
	UserID  string `json:"userId"`
	FromURL string `json:"fromUrl"`
}

// Codec turns a PendingAuthState into a state parameter and back
type Codec interface {
	Encode(ctx context.Context, state PendingAuthState) (string, error)
	Decode(ctx context.Context, token string) (PendingAuthState, error)
}

// Plain is the unsigned wire format: base64(JSON(state)).
type Plain struct{}

var _ Codec = Plain{}

// Encode JSON-serializes then base64-encodes (standard alphabet, padded)
func (Plain) Encode(_ context.Context, state PendingAuthState) (string, error) {
	return Encode(state)
}

// Decode reverses Encode
func (Plain) Decode(_ context.Context, token string) (PendingAuthState, error) {
	return Decode(token)
}

// Encode is the package-level form of Plain.Encode
func Encode(state PendingAuthState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode is the package-level form of Plain.Decode
func Decode(token string) (PendingAuthState, error) {
	data, err := DecodeBase64(token)
	if err != nil {
		return PendingAuthState{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var state PendingAuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return PendingAuthState{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return state, nil
}

// DecodeBase64 accepts standard or URL-safe alphabets, padded or not.
// Query strings frequently arrive with '+' turned into ' ' or padding stripped.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty input")
	}
	s = strings.ReplaceAll(s, " ", "+")

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}

	var lastErr error
	for _, enc := range encodings {
		data, err := enc.Strict().DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
