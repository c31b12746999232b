package integration

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testEncryptionKey = "integration-encryption-key-32by!"
	testJWTSecret     = "integration-jwt-secret-at-least-32-bytes"
	testSigningKey    = "integration-state-signing-key-32b!"
	testAuthCode      = "test-auth-code"
	testGitHubCode    = "gh-test-code"
)

// FakeProviderServer fakes LinkedIn's OIDC endpoints and GitHub's OAuth and REST endpoints
type FakeProviderServer struct {
	*httptest.Server
}

// NewFakeProviderServer starts the fake on a random local port
func NewFakeProviderServer() *FakeProviderServer {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /linkedin/authorize", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		target := q.Get("redirect_uri") + "?code=" + testAuthCode + "&state=" + url.QueryEscape(q.Get("state"))
		http.Redirect(w, r, target, http.StatusFound)
	})

	mux.HandleFunc("POST /linkedin/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") != testAuthCode {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid authorization code",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "li-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("GET /linkedin/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer li-access-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            "li-member-1",
			"name":           "Grace Hopper",
			"given_name":     "Grace",
			"family_name":    "Hopper",
			"email":          "grace@example.com",
			"email_verified": true,
		})
	})

	mux.HandleFunc("POST /github/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") != testGitHubCode {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":             "bad_verification_code",
				"error_description": "The code passed is incorrect or expired.",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "gh-access-token",
			"token_type":   "bearer",
		})
	})

	mux.HandleFunc("GET /github/api/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    583231,
			"login": "octocat",
			"name":  "The Octocat",
			"email": "octocat@github.com",
		})
	})

	mux.HandleFunc("GET /github/api/users/octocat/repos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "hello-world", "full_name": "octocat/hello-world"},
			{"id": 2, "name": "spoon-knife", "full_name": "octocat/spoon-knife"},
		})
	})

	mux.HandleFunc("GET /github/api/repos/octocat/{name}/languages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"Go": len(r.PathValue("name")) * 100})
	})

	return &FakeProviderServer{Server: httptest.NewServer(mux)}
}

// freePort asks the kernel for an unused local port
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// testConfig returns a config map pointing both providers at the fake
func testConfig(baseURL string) map[string]any {
	fake := fakeProviders.URL
	return map[string]any{
		"version": "v1",
		"server": map[string]any{
			"baseURL":         baseURL,
			"addr":            strings.TrimPrefix(baseURL, "http://"),
			"allowedOrigins":  []string{baseURL},
			"upstreamTimeout": "5s",
		},
		"session": map[string]any{
			"ttl":             "1h",
			"cleanupInterval": "1m",
			"encryptionKey":   map[string]string{"$env": "JOBFRONT_ENCRYPTION_KEY"},
		},
		"stateToken": map[string]any{"mode": "plain"},
		"storage":    map[string]any{"kind": "memory"},
		"providers": map[string]any{
			"linkedin": map[string]any{
				"clientId":     "li-client",
				"clientSecret": map[string]string{"$env": "LINKEDIN_CLIENT_SECRET"},
				"redirectUri":  baseURL + "/linkedin/callback",
				"authUrl":      fake + "/linkedin/authorize",
				"tokenUrl":     fake + "/linkedin/token",
				"userInfoUrl":  fake + "/linkedin/userinfo",
			},
			"github": map[string]any{
				"clientId":     "gh-client",
				"clientSecret": map[string]string{"$env": "GITHUB_CLIENT_SECRET"},
				"redirectUri":  baseURL + "/github/callback",
				"authUrl":      fake + "/github/authorize",
				"tokenUrl":     fake + "/github/token",
				"apiBaseUrl":   fake + "/github/api",
			},
		},
		"apiAuth":         map[string]any{"jwtSecret": map[string]string{"$env": "JOBFRONT_JWT_SECRET"}},
		"recommendations": map[string]any{"enabled": true},
	}
}

// writeConfig serializes cfg into a temp file and returns its path
func writeConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// startJobFront runs the binary with cfg and waits until /health answers
func startJobFront(t *testing.T, cfg map[string]any, extraEnv ...string) (string, *exec.Cmd) {
	t.Helper()

	baseURL := cfg["server"].(map[string]any)["baseURL"].(string)
	cmd := exec.Command(binaryPath, "-config", writeConfig(t, cfg))
	cmd.Env = append(os.Environ(),
		"JOBFRONT_ENV=development",
		"JOBFRONT_ENCRYPTION_KEY="+testEncryptionKey,
		"JOBFRONT_JWT_SECRET="+testJWTSecret,
		"JOBFRONT_STATE_KEY="+testSigningKey,
		"LINKEDIN_CLIENT_SECRET=li-secret",
		"GITHUB_CLIENT_SECRET=gh-secret",
	)
	cmd.Env = append(cmd.Env, extraEnv...)

	if logFile := os.Getenv("JOBFRONT_LOG_FILE"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			cmd.Stderr = f
			cmd.Stdout = f
			t.Cleanup(func() { f.Close() })
		}
	}

	require.NoError(t, cmd.Start(), "failed to start jobfront")
	t.Cleanup(func() { stopJobFront(cmd) })

	waitForJobFront(t, baseURL)
	return baseURL, cmd
}

// newBaseURL picks a fresh local address for one server instance
func newBaseURL(t *testing.T) string {
	return fmt.Sprintf("http://127.0.0.1:%d", freePort(t))
}

// stopJobFront sends SIGINT and kills the process if it does not exit in time
func stopJobFront(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil || cmd.ProcessState != nil {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
}

// waitForJobFront polls /health until the server answers
func waitForJobFront(t *testing.T, baseURL string) {
	t.Helper()
	for range 50 {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("jobfront failed to become ready after 5 seconds")
}

// newBrowser returns a client with a cookie jar that follows redirects
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

// issueToken signs a bearer token the way the frontend's auth service does
func issueToken(t *testing.T, subject string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// trace logs only when TRACE=1
func trace(t *testing.T, format string, args ...any) {
	if os.Getenv("TRACE") == "1" {
		t.Logf("TRACE: "+format, args...)
	}
}
