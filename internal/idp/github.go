package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgellow/jobfront/internal/ioutil"
	"github.com/dgellow/jobfront/internal/urlutil"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubProvider implements the Provider interface for GitHub OAuth.
// GitHub uses OAuth 2.0 (not OIDC) and has its own API for user info.
type GitHubProvider struct {
	config     oauth2.Config
	apiBaseURL string // defaults to https://api.github.com, can be overridden for testing
}

// githubUserResponse represents GitHub's user API response.
type githubUserResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// githubEmailResponse represents an email from GitHub's emails API.
type githubEmailResponse struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// NewGitHubProvider creates a new GitHub OAuth provider.
func NewGitHubProvider(clientID, clientSecret, redirectURI string, scopes []string) *GitHubProvider {
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}
	return &GitHubProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint:     github.Endpoint,
		},
		apiBaseURL: "https://api.github.com",
	}
}

// WithAPIBaseURL points API calls at another host (GitHub Enterprise, tests)
func (p *GitHubProvider) WithAPIBaseURL(baseURL string) *GitHubProvider {
	if baseURL != "" {
		p.apiBaseURL = baseURL
	}
	return p
}

// WithEndpoint overrides the authorize/token endpoints
func (p *GitHubProvider) WithEndpoint(endpoint oauth2.Endpoint) *GitHubProvider {
	p.config.Endpoint = endpoint
	return p
}

// APIBaseURL returns the REST API root this provider talks to
func (p *GitHubProvider) APIBaseURL() string {
	return p.apiBaseURL
}

// Client returns an HTTP client that authenticates as token
func (p *GitHubProvider) Client(ctx context.Context, token *oauth2.Token) *http.Client {
	return p.config.Client(ctx, token)
}

// Type returns the provider type.
func (p *GitHubProvider) Type() string {
	return "github"
}

// AuthURL generates the authorization URL.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// UserInfo fetches the user's identity from GitHub's API.
func (p *GitHubProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	client := p.config.Client(ctx, token)

	user, err := p.fetchUser(ctx, client)
	if err != nil {
		return nil, err
	}

	// GitHub only shows verified emails in the public profile, so if email is present it's verified
	email := user.Email
	emailVerified := email != ""
	if email == "" {
		// A missing emails scope should not fail the login; the profile just has no email
		if primary, verified, err := p.fetchPrimaryEmail(ctx, client); err == nil {
			email, emailVerified = primary, verified
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	profile := &Profile{
		ProviderType: "github",
		Subject:      strconv.FormatInt(user.ID, 10),
		Username:     user.Login,
		DisplayName:  name,
		Emails:       []Value{},
		Photos:       []Value{},
	}
	if email != "" {
		profile.Emails = append(profile.Emails, Value{Value: normalizeEmail(email), Verified: emailVerified})
	}
	if user.AvatarURL != "" {
		profile.Photos = append(profile.Photos, Value{Value: user.AvatarURL})
	}
	return profile, nil
}

func (p *GitHubProvider) get(ctx context.Context, client *http.Client, path string, v any) error {
	endpoint, err := urlutil.JoinPath(p.apiBaseURL, strings.Split(strings.Trim(path, "/"), "/")...)
	if err != nil {
		return fmt.Errorf("failed to build URL for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			Endpoint:   "github " + path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       ioutil.ReadLimited(resp.Body, 1024),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (p *GitHubProvider) fetchUser(ctx context.Context, client *http.Client) (*githubUserResponse, error) {
	var user githubUserResponse
	if err := p.get(ctx, client, "/user", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *GitHubProvider) fetchPrimaryEmail(ctx context.Context, client *http.Client) (string, bool, error) {
	var emails []githubEmailResponse
	if err := p.get(ctx, client, "/user/emails", &emails); err != nil {
		return "", false, err
	}

	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, true, nil
		}
	}

	// Fallback to first verified email
	for _, email := range emails {
		if email.Verified {
			return email.Email, true, nil
		}
	}

	return "", false, fmt.Errorf("no verified email found")
}
