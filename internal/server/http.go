package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	jsonwriter "github.com/dgellow/jobfront/internal/json"
	"github.com/dgellow/jobfront/internal/log"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// HTTPServer manages the HTTP server lifecycle
type HTTPServer struct {
	server *http.Server

	mu         sync.Mutex
	listener   net.Listener
	onShutdown []func()
}

// NewHTTPServer creates a new HTTP server with the given handler and address
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// OnShutdown registers fn to run when Stop begins, before connections drain
func (h *HTTPServer) OnShutdown(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onShutdown = append(h.onShutdown, fn)
}

// Addr returns the bound listen address once Start has bound it, else the configured one
func (h *HTTPServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.server.Addr
}

// Start binds the listener and serves until Stop. It returns nil after a clean shutdown.
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.listener = ln
	h.mu.Unlock()

	log.LogInfoWithFields("http", "HTTP server listening", map[string]any{
		"addr": ln.Addr().String(),
	})

	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop runs the shutdown hooks, then waits for in-flight requests until ctx expires
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	hooks := h.onShutdown
	h.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	start := time.Now()
	h.server.SetKeepAlivesEnabled(false)
	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.LogInfoWithFields("http", "HTTP server stopped", map[string]any{
		"addr":    h.Addr(),
		"drained": time.Since(start).String(),
	})
	return nil
}

// HealthHandler reports "ok" until Drain is called, then 503 "draining"
type HealthHandler struct {
	draining atomic.Bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Drain flips the handler to 503
func (h *HealthHandler) Drain() {
	h.draining.Store(true)
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code, status := http.StatusOK, "ok"
	if h.draining.Load() {
		code, status = http.StatusServiceUnavailable, "draining"
	}
	if err := jsonwriter.WriteResponse(w, code, HealthResponse{Status: status}); err != nil {
		log.LogError("Failed to write health response: %v", err)
	}
}

// FailureHandler is where the handshake sends the browser when a login fails
func FailureHandler(w http.ResponseWriter, r *http.Request) {
	jsonwriter.WriteUnauthorized(w, "Authentication Failed")
}
