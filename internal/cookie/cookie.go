package cookie

import (
	"net/http"
	"time"

	"github.com/dgellow/jobfront/internal/envutil"
	"github.com/dgellow/jobfront/internal/log"
)

// Cookie names used by jobfront
const (
	TempUserCookie = "temp_user"
	SessionCookie  = "jobfront_session"
)

// TempUserMaxAge bounds the gap between starting a LinkedIn link and the provider callback
const TempUserMaxAge = 5 * time.Minute

// SetTempUser stores the pending user id for the duration of one OAuth round trip
func SetTempUser(w http.ResponseWriter, userID string) {
	secure := !envutil.IsDev()
	http.SetCookie(w, &http.Cookie{
		Name:     TempUserCookie,
		Value:    userID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(TempUserMaxAge.Seconds()),
	})

	log.LogTraceWithFields("cookie", "Temporary user cookie set", map[string]any{
		"maxAge": TempUserMaxAge.String(),
		"secure": secure,
	})
}

// GetTempUser returns the pending user id, or http.ErrNoCookie when absent or empty
func GetTempUser(r *http.Request) (string, error) {
	value, err := Get(r, TempUserCookie)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", http.ErrNoCookie
	}
	return value, nil
}

// ClearTempUser removes the pending user cookie
func ClearTempUser(w http.ResponseWriter) {
	expire(w, TempUserCookie, http.SameSiteLaxMode)
	log.LogTraceWithFields("cookie", "Temporary user cookie cleared", nil)
}

// SetSession sets the established-session cookie.
// Lax rather than Strict so the cookie survives the top-level redirect back from LinkedIn.
func SetSession(w http.ResponseWriter, value string, maxAge time.Duration) {
	secure := !envutil.IsDev()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})

	log.LogTraceWithFields("cookie", "Session cookie set", map[string]any{
		"maxAge": maxAge.String(),
		"secure": secure,
	})
}

// GetSession retrieves the session cookie value
func GetSession(r *http.Request) (string, error) {
	return Get(r, SessionCookie)
}

// ClearSession removes the session cookie
func ClearSession(w http.ResponseWriter) {
	expire(w, SessionCookie, http.SameSiteLaxMode)
	log.LogTraceWithFields("cookie", "Session cookie cleared", nil)
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// expire expires a cookie. Attributes mirror the ones used when setting it so
// browsers match and drop the original.
func expire(w http.ResponseWriter, name string, sameSite http.SameSite) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: sameSite,
		MaxAge:   -1,
	})
}
