package session

import (
	"time"

	"github.com/dgellow/jobfront/internal/idp"
)

// BrowserCookie is the data stored in the encrypted session cookie
type BrowserCookie struct {
	SessionID string    `json:"sid"`
	UserID    string    `json:"uid"`
	Provider  string    `json:"provider"`
	Expires   time.Time `json:"expires"`
}

// IsExpired reports whether the cookie is past its expiry
func (c BrowserCookie) IsExpired(now time.Time) bool {
	return !now.Before(c.Expires)
}

// Identity is the authenticated caller attached to a request
type Identity struct {
	SessionID string
	UserID    string
	Provider  string
	Profile   *idp.Profile
}
