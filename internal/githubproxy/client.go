// Package githubproxy exchanges GitHub authorization codes on behalf of the
// frontend and proxies the read-only repository endpoints it needs.
package githubproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgellow/jobfront/internal/idp"
	"github.com/dgellow/jobfront/internal/ioutil"
	"github.com/dgellow/jobfront/internal/log"
	"github.com/dgellow/jobfront/internal/urlutil"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// maxLanguageFetches bounds the per-repo languages fan-out
const maxLanguageFetches = 8

// Observer receives the latency of every outbound call
type Observer interface {
	ObserveUpstream(operation string, err error, elapsed time.Duration)
}

// Repo is the subset of GitHub's repository object the frontend renders
type Repo struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	FullName        string         `json:"full_name"`
	HTMLURL         string         `json:"html_url"`
	Description     string         `json:"description"`
	Language        string         `json:"language"`
	Fork            bool           `json:"fork"`
	StargazersCount int            `json:"stargazers_count"`
	ForksCount      int            `json:"forks_count"`
	UpdatedAt       string         `json:"updated_at"`
	LanguagesURL    string         `json:"languages_url"`
	Languages       map[string]int `json:"languages,omitempty"`
}

// Client talks to GitHub's OAuth and REST endpoints
type Client struct {
	provider   *idp.GitHubProvider
	httpClient *http.Client
	timeout    time.Duration
	observer   Observer
}

// Option configures a Client
type Option func(*Client)

// WithObserver reports upstream latencies to o
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithHTTPClient sets the client used for unauthenticated API calls
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client. A non-positive timeout disables the per-call deadline.
func NewClient(provider *idp.GitHubProvider, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		httpClient: http.DefaultClient,
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) observe(op string, err error, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(op, err, time.Since(start))
	}
}

// ExchangeCodeForToken trades an authorization code for an access token
func (c *Client) ExchangeCodeForToken(ctx context.Context, code string) (*oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &MissingCodeError{}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	token, err := c.provider.ExchangeCode(ctx, code)
	c.observe("github_token_exchange", err, start)
	if err != nil {
		return nil, classifyExchangeError(err)
	}
	if token.AccessToken == "" {
		return nil, &TokenExchangeError{Message: "GitHub did not return an access token"}
	}
	return token, nil
}

// FetchIdentity returns the profile of the user token belongs to
func (c *Client) FetchIdentity(ctx context.Context, token *oauth2.Token) (*idp.Profile, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	profile, err := c.provider.UserInfo(ctx, token)
	c.observe("github_user", err, start)
	if err != nil {
		return nil, classifyAPIError("identity request", err)
	}
	return profile, nil
}

// ListRepos returns the public repositories of username
func (c *Client) ListRepos(ctx context.Context, username string) ([]Repo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var repos []Repo
	if err := c.get(ctx, "github_repos", &repos, "users", username, "repos"); err != nil {
		return nil, classifyAPIError("repos request", err)
	}
	if repos == nil {
		repos = []Repo{}
	}
	return repos, nil
}

// ListReposWithLanguages lists repos then fetches each one's languages concurrently.
// The first failing languages call aborts the rest.
func (c *Client) ListReposWithLanguages(ctx context.Context, username string) ([]Repo, error) {
	repos, err := c.ListRepos(ctx, username)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLanguageFetches)
	for i := range repos {
		g.Go(func() error {
			langs, err := c.languages(gctx, repos[i].FullName)
			if err != nil {
				return err
			}
			repos[i].Languages = langs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return repos, nil
}

// RepoLanguages returns the byte count per language of the repository at repoURL.
// Accepted forms: https://github.com/{owner}/{repo}, an api.github.com repos or
// languages URL, or a bare "{owner}/{repo}".
func (c *Client) RepoLanguages(ctx context.Context, repoURL string) (map[string]int, error) {
	fullName, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	return c.languages(ctx, fullName)
}

func (c *Client) languages(ctx context.Context, fullName string) (map[string]int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	owner, name, _ := strings.Cut(fullName, "/")
	langs := map[string]int{}
	if err := c.get(ctx, "github_languages", &langs, "repos", owner, name, "languages"); err != nil {
		return nil, classifyAPIError("languages request", err)
	}
	return langs, nil
}

func (c *Client) get(ctx context.Context, op string, v any, segments ...string) error {
	path := "/" + strings.Join(segments, "/")
	endpoint, err := urlutil.JoinPath(c.provider.APIBaseURL(), segments...)
	if err != nil {
		return fmt.Errorf("failed to build URL for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, err, start)
		return &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &idp.APIError{
			Endpoint:   "github " + path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       ioutil.ReadLimited(resp.Body, 1024),
		}
		c.observe(op, apiErr, start)
		return apiErr
	}

	err = json.NewDecoder(resp.Body).Decode(v)
	c.observe(op, err, start)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	log.LogTraceWithFields("githubproxy", "GitHub API call", map[string]any{
		"path":     path,
		"duration": time.Since(start).String(),
	})
	return nil
}

// InvalidRepoURLError is returned when a repo URL cannot be resolved to owner/repo
type InvalidRepoURLError struct {
	URL string
}

func (e *InvalidRepoURLError) Error() string {
	return fmt.Sprintf("invalid repository URL: %q", e.URL)
}

// ParseRepoURL resolves a repository reference to "owner/repo"
func ParseRepoURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &InvalidRepoURLError{URL: raw}
	}

	var path string
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			return "", &InvalidRepoURLError{URL: raw}
		}
		path = u.Path
		if strings.HasPrefix(strings.ToLower(u.Host), "api.") {
			var ok bool
			path, ok = strings.CutPrefix(path, "/repos/")
			if !ok {
				return "", &InvalidRepoURLError{URL: raw}
			}
		}
	} else {
		path = s
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return "", &InvalidRepoURLError{URL: raw}
	}
	name := strings.TrimSuffix(segments[1], ".git")
	if name == "" {
		return "", &InvalidRepoURLError{URL: raw}
	}
	return segments[0] + "/" + name, nil
}
