package server

import (
	"net/http"

	"github.com/dgellow/jobfront/internal/apiauth"
	"github.com/dgellow/jobfront/internal/config"
	"github.com/dgellow/jobfront/internal/githubproxy"
	"github.com/dgellow/jobfront/internal/handshake"
	"github.com/dgellow/jobfront/internal/log"
	"github.com/dgellow/jobfront/internal/metrics"
	"github.com/dgellow/jobfront/internal/profile"
	"github.com/dgellow/jobfront/internal/session"
)

// Handlers are the components the router dispatches to. GitHub is nil when the
// github provider is not configured.
type Handlers struct {
	Health        *HealthHandler
	Orchestrators []*handshake.Orchestrator
	Sessions      *session.Manager
	APIAuth       *apiauth.Verifier
	Profiles      *profile.Responder
	GitHub        *githubproxy.Handlers
	Metrics       *metrics.Metrics
}

// NewRouter registers every route and wraps the mux in the global middleware
func NewRouter(h Handlers, cfg config.ServerConfig) http.Handler {
	mux := http.NewServeMux()

	var limiter *IPRateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	handle := func(pattern string, handler http.Handler, middlewares ...MiddlewareFunc) {
		if h.Metrics != nil {
			middlewares = append(middlewares, NewMetricsMiddleware(h.Metrics, pattern))
		}
		mux.Handle(pattern, ChainMiddleware(handler, middlewares...))
	}

	// Auth endpoints are the ones worth throttling
	var authLimits []MiddlewareFunc
	if limiter != nil {
		authLimits = append(authLimits, NewRateLimitMiddleware(limiter))
	}

	health := h.Health
	if health == nil {
		health = NewHealthHandler()
	}
	handle("GET /health", health)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
	}

	for _, o := range h.Orchestrators {
		prefix := "/" + o.Provider()
		handle("POST "+prefix+"/start", http.HandlerFunc(o.HandleStart),
			append([]MiddlewareFunc{h.APIAuth.Middleware()}, authLimits...)...)
		handle("GET "+prefix+"/auth", http.HandlerFunc(o.InitiateAuth), authLimits...)
		handle("GET "+prefix+"/callback", http.HandlerFunc(o.Callback), authLimits...)

		log.LogDebugWithFields("server", "Registered handshake routes", map[string]any{
			"provider": o.Provider(),
			"prefix":   prefix,
		})
	}

	handle("GET /failure", http.HandlerFunc(FailureHandler))
	handle("GET /profile", http.HandlerFunc(h.Profiles.GetProfile), h.Sessions.Middleware())
	handle("POST /logout", http.HandlerFunc(h.Sessions.Logout))

	if h.GitHub != nil {
		handle("POST /github/oauth", http.HandlerFunc(h.GitHub.OAuth), authLimits...)
		handle("GET /github/repos/{username}", http.HandlerFunc(h.GitHub.Repos))
		handle("GET /github/languages", http.HandlerFunc(h.GitHub.Languages))
	}

	return ChainMiddleware(mux,
		NewCORSMiddleware(cfg.AllowedOrigins),
		NewLoggerMiddleware("http"),
		NewRecoverMiddleware("http"),
	)
}
