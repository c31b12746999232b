package statetoken

import "fmt"

// Mode selects a Codec implementation from configuration
type Mode string

const (
	ModePlain  Mode = "plain"
	ModeSigned Mode = "signed"
	ModeStored Mode = "stored"
)

// New builds the codec for mode. key is required for ModeSigned, store for ModeStored.
func New(mode Mode, key []byte, store PendingStore) (Codec, error) {
	switch mode {
	case ModePlain, "":
		return Plain{}, nil
	case ModeSigned:
		if len(key) < 32 {
			return nil, fmt.Errorf("signed state tokens need a key of at least 32 bytes")
		}
		return NewSigned(key), nil
	case ModeStored:
		if store == nil {
			return nil, fmt.Errorf("stored state tokens need a pending store")
		}
		return NewStored(store), nil
	default:
		return nil, fmt.Errorf("unknown state token mode: %s", mode)
	}
}
