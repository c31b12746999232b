package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dgellow/jobfront/internal/ioutil"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

// LinkedInProvider implements Provider using LinkedIn's "Sign In with LinkedIn
// using OpenID Connect" product. Profile data comes from the userinfo endpoint.
type LinkedInProvider struct {
	config      oauth2.Config
	userInfoURL string // overridable for testing
}

// linkedInUserInfo is the OIDC userinfo response
type linkedInUserInfo struct {
	Subject       string `json:"sub"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Locale        any    `json:"locale"`
}

// NewLinkedInProvider creates a LinkedIn provider. Scopes default to openid, profile, email.
func NewLinkedInProvider(clientID, clientSecret, redirectURI string, scopes []string) *LinkedInProvider {
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}
	endpoint := linkedin.Endpoint
	// LinkedIn rejects HTTP basic client authentication on the token endpoint
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &LinkedInProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: "https://api.linkedin.com/v2/userinfo",
	}
}

func (p *LinkedInProvider) Type() string {
	return "linkedin"
}

func (p *LinkedInProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *LinkedInProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// UserInfo fetches the member's OIDC profile
func (p *LinkedInProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Endpoint:   "linkedin userinfo",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       ioutil.ReadLimited(resp.Body, 1024),
		}
	}

	var info linkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("userinfo response has no subject")
	}

	profile := &Profile{
		ProviderType: "linkedin",
		Subject:      info.Subject,
		DisplayName:  info.Name,
		GivenName:    info.GivenName,
		FamilyName:   info.FamilyName,
		Emails:       []Value{},
		Photos:       []Value{},
		Locale:       linkedInLocale(info.Locale),
	}
	if info.Email != "" {
		profile.Emails = append(profile.Emails, Value{Value: normalizeEmail(info.Email), Verified: info.EmailVerified})
	}
	if info.Picture != "" {
		profile.Photos = append(profile.Photos, Value{Value: info.Picture})
	}
	return profile, nil
}

// linkedInLocale handles both "en-US" and {"country":"US","language":"en"} forms
func linkedInLocale(v any) string {
	switch l := v.(type) {
	case string:
		return l
	case map[string]any:
		lang, _ := l["language"].(string)
		country, _ := l["country"].(string)
		if lang != "" && country != "" {
			return lang + "-" + country
		}
		return lang
	default:
		return ""
	}
}
