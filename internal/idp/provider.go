package idp

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// Value is a single profile entry, shaped like the emails/photos lists identity
// providers return ({"value": ...}).
type Value struct {
	Value    string `json:"value"`
	Verified bool   `json:"verified,omitempty"`
}

// Profile is the provider identity handed back after a successful login.
// It is stored with the session and returned by the profile endpoint.
type Profile struct {
	ProviderType string  `json:"provider"`
	Subject      string  `json:"id"`
	Username     string  `json:"username,omitempty"`
	DisplayName  string  `json:"displayName"`
	GivenName    string  `json:"givenName,omitempty"`
	FamilyName   string  `json:"familyName,omitempty"`
	Emails       []Value `json:"emails"`
	Photos       []Value `json:"photos"`
	Locale       string  `json:"locale,omitempty"`
}

// PrimaryEmail returns the first email on the profile, or ""
func (p *Profile) PrimaryEmail() string {
	if p == nil || len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0].Value
}

// Provider abstracts identity provider operations.
// The handshake orchestrator only talks to providers through this interface.
type Provider interface {
	// Type returns the provider type identifier ("linkedin", "github").
	Type() string

	// AuthURL builds the consent redirect; state must come back verbatim on callback.
	AuthURL(state string) string

	// ExchangeCode exchanges an authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// UserInfo fetches the authenticated user's profile.
	UserInfo(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// APIError is returned when a provider API answers with a non-success status.
// Status keeps the upstream status text for diagnostics.
type APIError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Endpoint, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
