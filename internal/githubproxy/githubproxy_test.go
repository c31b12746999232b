package githubproxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgellow/jobfront/internal/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeGitHub struct {
	tokenStatus int
	tokenBody   string
	userStatus  int
	repos       []Repo
	languages   map[string]map[string]int
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (f *fakeGitHub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := f.tokenStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		body := f.tokenBody
		if body == "" {
			body = `{"access_token":"gho_test","token_type":"bearer"}`
		}
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if f.userStatus != 0 {
			http.Error(w, "bad credentials", f.userStatus)
			return
		}
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    42,
			"login": "octocat",
			"name":  "The Octocat",
			"email": "octocat@github.com",
		})
	})
	mux.HandleFunc("GET /users/{username}/repos", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("username") != "octocat" {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(f.repos)
	})
	mux.HandleFunc("GET /repos/{owner}/{name}/languages", func(w http.ResponseWriter, r *http.Request) {
		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)
		for {
			cur := f.maxInFlight.Load()
			if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		if f.delay > 0 {
			time.Sleep(f.delay)
		}

		langs, ok := f.languages[r.PathValue("owner")+"/"+r.PathValue("name")]
		if !ok {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(langs)
	})
	return mux
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (o *recordingObserver) ObserveUpstream(operation string, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, operation)
}

func newTestClient(t *testing.T, fake *fakeGitHub, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return newClientFor(srv.URL, opts...)
}

func newClientFor(baseURL string, opts ...Option) *Client {
	provider := idp.NewGitHubProvider("client-id", "client-secret", "https://app.example.com/github/callback", nil).
		WithAPIBaseURL(baseURL).
		WithEndpoint(oauth2.Endpoint{
			AuthURL:   baseURL + "/authorize",
			TokenURL:  baseURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		})
	return NewClient(provider, 5*time.Second, opts...)
}

func postOAuth(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/github/oauth", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.OAuth(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestOAuth_Success(t *testing.T) {
	observer := &recordingObserver{}
	h := NewHandlers(newTestClient(t, &fakeGitHub{}, WithObserver(observer)))

	rec := postOAuth(t, h, `{"code":"abc123"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp OAuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "octocat", resp.Username)
	assert.Equal(t, []string{"github_token_exchange", "github_user"}, observer.ops)
}

func TestOAuth_MissingCode(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{}))

	for _, body := range []string{`{}`, `{"code":""}`, ``} {
		t.Run(body, func(t *testing.T) {
			rec := postOAuth(t, h, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Authorization code is required", decodeError(t, rec))
		})
	}
}

func TestOAuth_MalformedBody(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{}))

	rec := postOAuth(t, h, `{"code":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decodeError(t, rec))
}

func TestOAuth_CodeTooLong(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{}))

	rec := postOAuth(t, h, fmt.Sprintf(`{"code":%q}`, strings.Repeat("a", 600)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuth_ProviderRejectsCode(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{
		tokenStatus: http.StatusBadRequest,
		tokenBody:   `{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`,
	}))

	rec := postOAuth(t, h, `{"code":"expired"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "The code passed is incorrect or expired.", decodeError(t, rec))
}

func TestOAuth_ProviderReturnsNoToken(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{
		tokenBody: `{"token_type":"bearer"}`,
	}))

	rec := postOAuth(t, h, `{"code":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
}

func TestOAuth_ProviderServerError(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{
		tokenStatus: http.StatusBadGateway,
		tokenBody:   `{"error":"upstream"}`,
	}))

	rec := postOAuth(t, h, `{"code":"abc"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "GitHub token exchange failed: 502 Bad Gateway", decodeError(t, rec))
}

func TestOAuth_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	h := NewHandlers(newClientFor(baseURL))

	rec := postOAuth(t, h, `{"code":"abc"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rec))
}

func TestOAuth_IdentityFailure(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusUnauthorized, "GitHub identity request failed: 401 Unauthorized"},
		{http.StatusForbidden, "GitHub identity request failed: 403 Forbidden"},
		{http.StatusServiceUnavailable, "GitHub identity request failed: 503 Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			h := NewHandlers(newTestClient(t, &fakeGitHub{userStatus: tt.status}))

			rec := postOAuth(t, h, `{"code":"abc"}`)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec))
		})
	}
}

func TestUpstreamError_Detail(t *testing.T) {
	withResponse := &UpstreamError{Op: "identity request", StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"}
	assert.Equal(t, "GitHub identity request failed: 401 Unauthorized", withResponse.Detail())

	noResponse := &UpstreamError{Op: "identity request", Err: errors.New("connection refused")}
	assert.Equal(t, "Internal server error", noResponse.Detail())
}

func TestFetchIdentity_CarriesUpstreamStatus(t *testing.T) {
	client := newTestClient(t, &fakeGitHub{userStatus: http.StatusForbidden})

	_, err := client.FetchIdentity(t.Context(), &oauth2.Token{AccessToken: "gho_test"})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
	assert.Equal(t, "403 Forbidden", upstream.Status)
}

func TestExchangeCodeForToken_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := newClientFor(srv.URL)
	client.timeout = 50 * time.Millisecond

	_, err := client.ExchangeCodeForToken(t.Context(), "abc")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
}

func testRepos() []Repo {
	return []Repo{
		{ID: 1, Name: "hello-world", FullName: "octocat/hello-world"},
		{ID: 2, Name: "spoon-knife", FullName: "octocat/spoon-knife"},
		{ID: 3, Name: "linguist", FullName: "octocat/linguist"},
	}
}

func TestRepos(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{repos: testRepos()}))

	req := httptest.NewRequest(http.MethodGet, "/github/repos/octocat", nil)
	req.SetPathValue("username", "octocat")
	rec := httptest.NewRecorder()
	h.Repos(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var repos []Repo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&repos))
	require.Len(t, repos, 3)
	assert.Equal(t, "octocat/hello-world", repos[0].FullName)
	assert.Nil(t, repos[0].Languages)
}

func TestRepos_UnknownUser(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{}))

	req := httptest.NewRequest(http.MethodGet, "/github/repos/nobody", nil)
	req.SetPathValue("username", "nobody")
	rec := httptest.NewRecorder()
	h.Repos(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "GitHub repos request failed: 404 Not Found", decodeError(t, rec))
}

type brokenConn struct {
	*httptest.ResponseRecorder
}

func (brokenConn) Write([]byte) (int, error) {
	return 0, errors.New("client went away")
}

func TestHandlers_WriteFailure(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{repos: testRepos()}))

	req := httptest.NewRequest(http.MethodGet, "/github/repos/octocat", nil)
	req.SetPathValue("username", "octocat")
	w := brokenConn{httptest.NewRecorder()}

	assert.NotPanics(t, func() { h.Repos(w, req) })
	assert.Equal(t, http.StatusOK, w.Code)

	w = brokenConn{httptest.NewRecorder()}
	assert.NotPanics(t, func() { h.OAuth(w, httptest.NewRequest(http.MethodPost, "/github/oauth", strings.NewReader(`{"code":"abc"}`))) })
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRepos_InvalidUsername(t *testing.T) {
	h := NewHandlers(newTestClient(t, &fakeGitHub{}))

	req := httptest.NewRequest(http.MethodGet, "/github/repos/x", nil)
	req.SetPathValue("username", strings.Repeat("a", 40))
	rec := httptest.NewRecorder()
	h.Repos(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRepos_WithLanguages(t *testing.T) {
	repos := make([]Repo, 20)
	langs := map[string]map[string]int{}
	for i := range repos {
		full := fmt.Sprintf("octocat/repo-%02d", i)
		repos[i] = Repo{ID: int64(i), Name: fmt.Sprintf("repo-%02d", i), FullName: full}
		langs[full] = map[string]int{"Go": 1000 + i}
	}
	fake := &fakeGitHub{repos: repos, languages: langs, delay: 10 * time.Millisecond}
	h := NewHandlers(newTestClient(t, fake))

	req := httptest.NewRequest(http.MethodGet, "/github/repos/octocat?languages=true", nil)
	req.SetPathValue("username", "octocat")
	rec := httptest.NewRecorder()
	h.Repos(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []Repo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 20)
	for i, repo := range got {
		assert.Equal(t, fmt.Sprintf("octocat/repo-%02d", i), repo.FullName)
		assert.Equal(t, map[string]int{"Go": 1000 + i}, repo.Languages)
	}
	assert.LessOrEqual(t, fake.maxInFlight.Load(), int32(maxLanguageFetches))
}

func TestRepos_WithLanguagesFailure(t *testing.T) {
	fake := &fakeGitHub{
		repos:     testRepos(),
		languages: map[string]map[string]int{"octocat/hello-world": {"Go": 10}},
	}
	client := newTestClient(t, fake)

	_, err := client.ListReposWithLanguages(t.Context(), "octocat")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
}

func TestLanguages(t *testing.T) {
	fake := &fakeGitHub{languages: map[string]map[string]int{
		"octocat/hello-world": {"Go": 1200, "Shell": 80},
	}}
	h := NewHandlers(newTestClient(t, fake))

	tests := []struct {
		name     string
		repoURL  string
		wantCode int
	}{
		{"html url", "https://github.com/octocat/hello-world", http.StatusOK},
		{"api url", "https://api.github.com/repos/octocat/hello-world", http.StatusOK},
		{"missing", "", http.StatusBadRequest},
		{"unparseable", "https://github.com/octocat", http.StatusBadRequest},
		{"unknown repo", "octocat/nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/github/languages?repoUrl="+tt.repoURL, nil)
			rec := httptest.NewRecorder()
			h.Languages(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				var langs map[string]int
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&langs))
				assert.Equal(t, map[string]int{"Go": 1200, "Shell": 80}, langs)
			}
		})
	}
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://github.com/octocat/hello-world", want: "octocat/hello-world"},
		{in: "https://github.com/octocat/hello-world.git", want: "octocat/hello-world"},
		{in: "https://github.com/octocat/hello-world/tree/main", want: "octocat/hello-world"},
		{in: "https://api.github.com/repos/octocat/hello-world/languages", want: "octocat/hello-world"},
		{in: "octocat/hello-world", want: "octocat/hello-world"},
		{in: "https://api.github.com/users/octocat", wantErr: true},
		{in: "ftp://github.com/octocat/hello-world", wantErr: true},
		{in: "octocat", wantErr: true},
		{in: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepoURL(tt.in)
			if tt.wantErr {
				var invalid *InvalidRepoURLError
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
