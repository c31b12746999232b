// Package handshake sequences the browser OAuth login: start sets a pending cookie,
// auth redirects to the provider with a state token, callback establishes the session
// and redirects to the page the user came from.
package handshake

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dgellow/jobfront/internal/apiauth"
	"github.com/dgellow/jobfront/internal/cookie"
	"github.com/dgellow/jobfront/internal/idp"
	jsonwriter "github.com/dgellow/jobfront/internal/json"
	"github.com/dgellow/jobfront/internal/log"
	"github.com/dgellow/jobfront/internal/statetoken"
	"github.com/dgellow/jobfront/internal/storage"
)

// Step names used in logs and metrics
const (
	StepStart    = "start"
	StepAuth     = "auth"
	StepCallback = "callback"
)

// Outcomes reported to the Observer
const (
	OutcomeStarted       = "started"
	OutcomeRedirected    = "redirected"
	OutcomeNoPending     = "no_pending"
	OutcomeStateError    = "state_error"
	OutcomeProviderError = "provider_error"
	OutcomeExchangeError = "exchange_error"
	OutcomeProfileError  = "profile_error"
	OutcomeSessionError  = "session_error"
	OutcomeSuccess       = "success"
)

var errNoProfile = errors.New("provider returned no user")

// SessionEstablisher logs the user in once the provider identity is known
type SessionEstablisher interface {
	Establish(ctx context.Context, w http.ResponseWriter, userID string, profile *idp.Profile) (*storage.Session, error)
}

// Observer is notified of the outcome of every handshake step
type Observer interface {
	ObserveHandshake(provider, step, outcome string)
}

// Config holds the redirect targets and upstream limits of an Orchestrator
type Config struct {
	DefaultRedirect string
	FailureRedirect string
	AllowedOrigins  []string
	UpstreamTimeout time.Duration
}

// StartResponse acknowledges that a pending login was recorded
type StartResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithObserver reports step outcomes to obs
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithTraceHook calls fn with the phase trace of every finished step
func WithTraceHook(fn func(step string, trace *Trace)) Option {
	return func(o *Orchestrator) { o.traceHook = fn }
}

// Orchestrator runs the handshake for one identity provider
type Orchestrator struct {
	provider  idp.Provider
	codec     statetoken.Codec
	sessions  SessionEstablisher
	redirects RedirectPolicy
	failure   string
	timeout   time.Duration
	observer  Observer
	traceHook func(step string, trace *Trace)
}

// New creates an orchestrator for provider
func New(provider idp.Provider, codec statetoken.Codec, sessions SessionEstablisher, cfg Config, opts ...Option) *Orchestrator {
	if cfg.DefaultRedirect == "" {
		cfg.DefaultRedirect = "/profile"
	}
	if cfg.FailureRedirect == "" {
		cfg.FailureRedirect = "/failure"
	}
	o := &Orchestrator{
		provider:  provider,
		codec:     codec,
		sessions:  sessions,
		redirects: RedirectPolicy{Default: cfg.DefaultRedirect, AllowedOrigins: cfg.AllowedOrigins},
		failure:   cfg.FailureRedirect,
		timeout:   cfg.UpstreamTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Provider returns the provider type this orchestrator serves
func (o *Orchestrator) Provider() string {
	return o.provider.Type()
}

func displayName(provider string) string {
	switch provider {
	case "linkedin":
		return "LinkedIn"
	case "github":
		return "GitHub"
	default:
		return provider
	}
}

// HandleStart records a pending login for the authenticated API caller
func (o *Orchestrator) HandleStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := apiauth.SubjectFromContext(r.Context())
	if !ok {
		jsonwriter.WriteUnauthorized(w, "Not authenticated")
		return
	}
	o.Start(w, userID)
}

// Start sets the temporary cookie for userID and acknowledges. No session is created.
func (o *Orchestrator) Start(w http.ResponseWriter, userID string) {
	trace := newTrace(Idle)
	if userID == "" {
		o.advance(trace, Failed)
		o.finish(StepStart, trace, OutcomeNoPending, nil)
		jsonwriter.WriteBadRequest(w, "User id is required")
		return
	}

	cookie.SetTempUser(w, userID)
	o.advance(trace, PendingCookieSet)
	o.finish(StepStart, trace, OutcomeStarted, map[string]any{"user": userID})

	resp := StartResponse{
		Message: displayName(o.provider.Type()) + " auth started",
		UserID:  userID,
	}
	if err := jsonwriter.WriteResponse(w, http.StatusOK, resp); err != nil {
		log.LogError("Failed to write start response: %v", err)
	}
}

// InitiateAuth reads the pending cookie and the base64 fromUrl query value, then
// redirects to the provider consent page with a state token.
func (o *Orchestrator) InitiateAuth(w http.ResponseWriter, r *http.Request) {
	trace := newTrace(Idle)

	userID, err := cookie.GetTempUser(r)
	if err != nil {
		o.advance(trace, Failed)
		o.finish(StepAuth, trace, OutcomeNoPending, nil)
		jsonwriter.WriteUnauthorized(w, "No pending authentication")
		return
	}
	o.advance(trace, PendingCookieSet)

	fromURL := decodeReturnURL(r.URL.Query().Get("fromUrl"))
	if fromURL == "" {
		fromURL = o.redirects.Default
	}

	state, err := o.codec.Encode(r.Context(), statetoken.PendingAuthState{UserID: userID, FromURL: fromURL})
	if err != nil {
		o.fail(w, r, StepAuth, trace, OutcomeStateError, err, nil)
		return
	}

	o.advance(trace, AwaitingProviderConsent)
	o.finish(StepAuth, trace, OutcomeRedirected, map[string]any{
		"user":    userID,
		"fromUrl": fromURL,
	})
	http.Redirect(w, r, o.provider.AuthURL(state), http.StatusFound)
}

// Callback finishes the login after the provider redirects back.
// Every failure clears the temporary cookie and redirects to the failure page.
func (o *Orchestrator) Callback(w http.ResponseWriter, r *http.Request) {
	trace := newTrace(AwaitingProviderConsent)
	o.advance(trace, CallbackReceived)

	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		o.fail(w, r, StepCallback, trace, OutcomeProviderError, errors.New(providerErr), map[string]any{
			"description": q.Get("error_description"),
		})
		return
	}
	code := q.Get("code")
	if code == "" {
		o.fail(w, r, StepCallback, trace, OutcomeProviderError, errors.New("missing authorization code"), nil)
		return
	}

	profile, outcome, err := o.identify(r.Context(), code)
	if err != nil {
		o.fail(w, r, StepCallback, trace, outcome, err, nil)
		return
	}

	pending := o.decodeState(r.Context(), q.Get("state"))

	cookieUser, _ := cookie.GetTempUser(r)
	userID := pending.UserID
	if userID == "" {
		userID = cookieUser
	} else if cookieUser != "" && cookieUser != userID {
		// plain state tokens are forgeable; the cookie was set behind bearer auth
		log.LogWarnWithFields("handshake", "State user does not match pending cookie", map[string]any{
			"provider":   o.provider.Type(),
			"stateUser":  userID,
			"cookieUser": cookieUser,
		})
	}
	if userID == "" {
		userID = profile.ProviderType + ":" + profile.Subject
	}

	if _, err := o.sessions.Establish(r.Context(), w, userID, profile); err != nil {
		o.fail(w, r, StepCallback, trace, OutcomeSessionError, err, map[string]any{"user": userID})
		return
	}

	target := o.redirects.Resolve(pending.FromURL)
	if pending.FromURL != "" && target != pending.FromURL {
		log.LogWarnWithFields("handshake", "Rejected redirect target", map[string]any{
			"provider": o.provider.Type(),
			"fromUrl":  pending.FromURL,
		})
	}

	cookie.ClearTempUser(w)
	o.advance(trace, SessionEstablished)
	o.finish(StepCallback, trace, OutcomeSuccess, map[string]any{
		"user":     userID,
		"redirect": target,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

// identify exchanges the code and fetches the provider identity, bounded by the upstream timeout
func (o *Orchestrator) identify(ctx context.Context, code string) (*idp.Profile, string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	token, err := o.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, OutcomeExchangeError, err
	}
	profile, err := o.provider.UserInfo(ctx, token)
	if err != nil {
		return nil, OutcomeProfileError, err
	}
	if profile == nil {
		return nil, OutcomeProfileError, errNoProfile
	}
	return profile, "", nil
}

// decodeState never fails the login; a missing or bad token yields the zero state
func (o *Orchestrator) decodeState(ctx context.Context, token string) statetoken.PendingAuthState {
	if token == "" {
		return statetoken.PendingAuthState{}
	}
	state, err := o.codec.Decode(ctx, token)
	if err != nil {
		log.LogWarnWithFields("handshake", "Ignoring undecodable state token", map[string]any{
			"provider": o.provider.Type(),
			"error":    err.Error(),
		})
		return statetoken.PendingAuthState{}
	}
	return state
}

func (o *Orchestrator) fail(w http.ResponseWriter, r *http.Request, step string, trace *Trace, outcome string, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["error"] = err.Error()

	cookie.ClearTempUser(w)
	o.advance(trace, Failed)
	o.finish(step, trace, outcome, fields)
	http.Redirect(w, r, o.failure, http.StatusFound)
}

func (o *Orchestrator) advance(trace *Trace, to Phase) {
	if err := trace.Advance(to); err != nil {
		log.LogErrorWithFields("handshake", "Invalid phase transition", map[string]any{
			"provider": o.provider.Type(),
			"error":    err.Error(),
		})
	}
}

func (o *Orchestrator) finish(step string, trace *Trace, outcome string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["provider"] = o.provider.Type()
	fields["step"] = step
	fields["outcome"] = outcome
	fields["phases"] = trace.String()

	if trace.Current() == Failed {
		log.LogWarnWithFields("handshake", "Handshake step failed", fields)
	} else {
		log.LogInfoWithFields("handshake", "Handshake step completed", fields)
	}

	if o.observer != nil {
		o.observer.ObserveHandshake(o.provider.Type(), step, outcome)
	}
	if o.traceHook != nil {
		o.traceHook(step, trace)
	}
}
