package handshake

import (
	"fmt"
	"slices"
	"strings"
)

// Phase is a step of the browser OAuth handshake
type Phase int

const (
	Idle Phase = iota
	PendingCookieSet
	AwaitingProviderConsent
	CallbackReceived
	SessionEstablished
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case PendingCookieSet:
		return "pending_cookie_set"
	case AwaitingProviderConsent:
		return "awaiting_provider_consent"
	case CallbackReceived:
		return "callback_received"
	case SessionEstablished:
		return "session_established"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no transition leaves p
func (p Phase) Terminal() bool {
	return p == SessionEstablished || p == Failed
}

// transitions lists the legal next phases for each phase
var transitions = map[Phase][]Phase{
	Idle:                    {PendingCookieSet, Failed},
	PendingCookieSet:        {AwaitingProviderConsent, Failed},
	AwaitingProviderConsent: {CallbackReceived, Failed},
	CallbackReceived:        {SessionEstablished, Failed},
}

// CanTransition reports whether from -> to is a legal transition
func CanTransition(from, to Phase) bool {
	return slices.Contains(transitions[from], to)
}

// Trace records the phases one request passes through.
// Each HTTP request sees only its own slice of the handshake, so a trace
// starts at the phase the request is known to resume from.
type Trace struct {
	phases []Phase
}

func newTrace(start Phase) *Trace {
	return &Trace{phases: []Phase{start}}
}

// Current returns the latest phase
func (t *Trace) Current() Phase {
	return t.phases[len(t.phases)-1]
}

// Phases returns a copy of the recorded phases
func (t *Trace) Phases() []Phase {
	return slices.Clone(t.phases)
}

// Advance moves to the next phase, rejecting transitions the table does not allow
func (t *Trace) Advance(to Phase) error {
	from := t.Current()
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal handshake transition %s -> %s", from, to)
	}
	t.phases = append(t.phases, to)
	return nil
}

func (t *Trace) String() string {
	names := make([]string, len(t.phases))
	for i, p := range t.phases {
		names[i] = p.String()
	}
	return strings.Join(names, " -> ")
}
