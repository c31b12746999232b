package profile

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgellow/jobfront/internal/idp"
	"github.com/dgellow/jobfront/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeProfile() *idp.Profile {
	return &idp.Profile{
		ProviderType: "linkedin",
		Subject:      "li-1",
		Username:     "ada",
		DisplayName:  "Ada Lovelace",
		GivenName:    "Ada",
		FamilyName:   "Lovelace",
		Emails:       []idp.Value{{Value: "ada@example.com"}},
		Photos:       []idp.Value{{Value: "https://media.example.com/ada.jpg"}},
		Locale:       "en_GB",
	}
}

func TestGetProfile_Unauthenticated(t *testing.T) {
	rec := httptest.NewRecorder()
	NewResponder(nil).GetProfile(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Not authenticated"}`, rec.Body.String())
}

func TestGetProfile_Authenticated(t *testing.T) {
	completeness, err := NewCompleteness([]string{FieldDisplayName, FieldPhoto})
	require.NoError(t, err)

	p := completeProfile()
	p.Photos = nil

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req = req.WithContext(session.WithIdentity(req.Context(), &session.Identity{
		UserID:   "user-1",
		Provider: "linkedin",
		Profile:  p,
	}))
	rec := httptest.NewRecorder()
	NewResponder(completeness).GetProfile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Ada Lovelace", body.Profile.DisplayName)
	assert.Equal(t, map[string]string{FieldPhoto: advisories[FieldPhoto]}, body.Recommendations)
}

func TestGetProfile_DisabledReturnsEmptyObject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req = req.WithContext(session.WithIdentity(req.Context(), &session.Identity{Profile: &idp.Profile{}}))
	rec := httptest.NewRecorder()
	NewResponder(Disabled{}).GetProfile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recommendations":{}`)
}

func TestCompleteness(t *testing.T) {
	all := []string{FieldDisplayName, FieldGivenName, FieldFamilyName, FieldEmail, FieldPhoto, FieldLocale, FieldUsername}
	c, err := NewCompleteness(all)
	require.NoError(t, err)

	t.Run("complete profile yields nothing", func(t *testing.T) {
		assert.Empty(t, c.Recommend(completeProfile()))
	})

	t.Run("each absent field yields one advisory", func(t *testing.T) {
		assert.Len(t, c.Recommend(&idp.Profile{}), len(all))
	})

	t.Run("blank name counts as absent", func(t *testing.T) {
		p := completeProfile()
		p.DisplayName = "   "
		got := c.Recommend(p)
		assert.Equal(t, []string{FieldDisplayName}, keys(got))
	})

	t.Run("nil profile", func(t *testing.T) {
		assert.Len(t, c.Recommend(nil), len(all))
	})
}

func TestNewCompleteness(t *testing.T) {
	c, err := NewCompleteness(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRequiredFields, c.fields)

	_, err = NewCompleteness([]string{"shoeSize"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile field "shoeSize"`)
}

func TestNewRecommender(t *testing.T) {
	r, err := NewRecommender(false, []string{"shoeSize"})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, r)
	assert.Empty(t, r.Recommend(&idp.Profile{}))

	r, err = NewRecommender(true, nil)
	require.NoError(t, err)
	assert.IsType(t, &Completeness{}, r)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
