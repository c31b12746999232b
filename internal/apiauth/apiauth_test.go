package apiauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgellow/jobfront/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "jwt-secret-that-is-at-least-32-bytes-long"

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.APIAuthConfig{
		JWTSecret: testSecret,
		Issuer:    "jobs-app",
		Audience:  "jobfront",
	})
	require.NoError(t, err)
	return v
}

func TestNewVerifier_ShortSecret(t *testing.T) {
	_, err := NewVerifier(config.APIAuthConfig{JWTSecret: "short"})
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	v := newTestVerifier(t)

	valid, err := v.Issue("user-1", time.Hour)
	require.NoError(t, err)

	expired, err := v.Issue("user-1", -time.Minute)
	require.NoError(t, err)

	other, err := NewVerifier(config.APIAuthConfig{JWTSecret: "another-secret-that-is-32-bytes-long!", Issuer: "jobs-app", Audience: "jobfront"})
	require.NoError(t, err)
	foreign, err := other.Issue("user-1", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "someone-else",
		Audience:  jwt.ClaimStrings{"jobfront"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "user-1",
		Issuer:   "jobs-app",
		Audience: jwt.ClaimStrings{"jobfront"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: valid},
		{name: "expired", token: expired, wantErr: true},
		{name: "wrong key", token: foreign, wantErr: true},
		{name: "wrong issuer", token: wrongIssuer, wantErr: true},
		{name: "no expiry", token: noExpiry, wantErr: true},
		{name: "garbage", token: "not.a.jwt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := v.Verify(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", subject)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := newTestVerifier(t)
	token, err := v.Issue("user-9", time.Hour)
	require.NoError(t, err)

	handler := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := SubjectFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(subject))
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/linkedin/start", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_request"`)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/linkedin/start", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/linkedin/start", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-9", rec.Body.String())
	})
}
