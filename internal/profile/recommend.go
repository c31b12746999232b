package profile

import (
	"fmt"
	"strings"

	"github.com/dgellow/jobfront/internal/idp"
)

// Recommender inspects a profile and returns advisories keyed by category
type Recommender interface {
	Recommend(p *idp.Profile) map[string]string
}

// Disabled never produces recommendations
type Disabled struct{}

func (Disabled) Recommend(*idp.Profile) map[string]string {
	return map[string]string{}
}

// Field names understood by Completeness
const (
	FieldDisplayName = "displayName"
	FieldGivenName   = "givenName"
	FieldFamilyName  = "familyName"
	FieldEmail       = "email"
	FieldPhoto       = "photo"
	FieldLocale      = "locale"
	FieldUsername    = "username"
)

// DefaultRequiredFields is used when completeness checks are enabled without a field list
var DefaultRequiredFields = []string{FieldDisplayName, FieldEmail, FieldPhoto}

var advisories = map[string]string{
	FieldDisplayName: "Add your full name so recruiters can find you.",
	FieldGivenName:   "Add your first name to your profile.",
	FieldFamilyName:  "Add your last name to your profile.",
	FieldEmail:       "Add a contact email so employers can reach you.",
	FieldPhoto:       "Add a profile photo; profiles with photos get more views.",
	FieldLocale:      "Set your location to see jobs near you.",
	FieldUsername:    "Set a public username so your profile is easy to share.",
}

// Completeness produces one advisory per required field that is absent
type Completeness struct {
	fields []string
}

// NewCompleteness checks the given fields. Unknown field names are rejected.
func NewCompleteness(fields []string) (*Completeness, error) {
	if len(fields) == 0 {
		fields = DefaultRequiredFields
	}
	for _, f := range fields {
		if _, ok := advisories[f]; !ok {
			return nil, fmt.Errorf("unknown profile field %q", f)
		}
	}
	return &Completeness{fields: fields}, nil
}

func (c *Completeness) Recommend(p *idp.Profile) map[string]string {
	out := map[string]string{}
	for _, f := range c.fields {
		if !present(p, f) {
			out[f] = advisories[f]
		}
	}
	return out
}

func present(p *idp.Profile, field string) bool {
	if p == nil {
		return false
	}
	switch field {
	case FieldDisplayName:
		return strings.TrimSpace(p.DisplayName) != ""
	case FieldGivenName:
		return strings.TrimSpace(p.GivenName) != ""
	case FieldFamilyName:
		return strings.TrimSpace(p.FamilyName) != ""
	case FieldEmail:
		return p.PrimaryEmail() != ""
	case FieldPhoto:
		return len(p.Photos) > 0 && p.Photos[0].Value != ""
	case FieldLocale:
		return p.Locale != ""
	case FieldUsername:
		return p.Username != ""
	}
	return false
}

// NewRecommender builds the recommender selected by configuration
func NewRecommender(enabled bool, fields []string) (Recommender, error) {
	if !enabled {
		return Disabled{}, nil
	}
	return NewCompleteness(fields)
}
