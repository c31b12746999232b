package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestSetTempUser(t *testing.T) {
	t.Setenv("JOBFRONT_ENV", "")
	w := httptest.NewRecorder()

	SetTempUser(w, "user-42")

	c := findCookie(t, w, TempUserCookie)
	assert.Equal(t, "user-42", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 300, c.MaxAge)
	assert.Equal(t, "/", c.Path)
}

func TestSetTempUserDevelopment(t *testing.T) {
	t.Setenv("JOBFRONT_ENV", "development")
	w := httptest.NewRecorder()

	SetTempUser(w, "user-42")

	assert.False(t, findCookie(t, w, TempUserCookie).Secure)
}

func TestGetTempUser(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: TempUserCookie, Value: "user-42"})

		v, err := GetTempUser(r)
		require.NoError(t, err)
		assert.Equal(t, "user-42", v)
	})

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		_, err := GetTempUser(r)
		assert.ErrorIs(t, err, http.ErrNoCookie)
	})

	t.Run("empty value", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: TempUserCookie, Value: ""})

		_, err := GetTempUser(r)
		assert.ErrorIs(t, err, http.ErrNoCookie)
	})
}

func TestClearTempUser(t *testing.T) {
	w := httptest.NewRecorder()

	ClearTempUser(w)

	c := findCookie(t, w, TempUserCookie)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)
}

func TestSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()

	SetSession(w, "sealed", 24*time.Hour)

	c := findCookie(t, w, SessionCookie)
	assert.Equal(t, "sealed", c.Value)
	assert.Equal(t, int((24 * time.Hour).Seconds()), c.MaxAge)

	w = httptest.NewRecorder()
	ClearSession(w)
	assert.Less(t, findCookie(t, w, SessionCookie).MaxAge, 0)
}
