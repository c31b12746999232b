package internal

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/dgellow/jobfront/internal/apiauth"
	"github.com/dgellow/jobfront/internal/config"
	"github.com/dgellow/jobfront/internal/crypto"
	"github.com/dgellow/jobfront/internal/githubproxy"
	"github.com/dgellow/jobfront/internal/handshake"
	"github.com/dgellow/jobfront/internal/idp"
	"github.com/dgellow/jobfront/internal/log"
	"github.com/dgellow/jobfront/internal/metrics"
	"github.com/dgellow/jobfront/internal/profile"
	"github.com/dgellow/jobfront/internal/server"
	"github.com/dgellow/jobfront/internal/session"
	"github.com/dgellow/jobfront/internal/statetoken"
	"github.com/dgellow/jobfront/internal/storage"
)

// JobFront is the assembled application
type JobFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	storage    storage.Storage
	cleanup    *storage.CleanupManager
}

// NewJobFront builds every component from cfg
func NewJobFront(ctx context.Context, cfg config.Config) (*JobFront, error) {
	log.LogInfoWithFields("jobfront", "Building application", map[string]any{
		"baseURL":   cfg.Server.BaseURL,
		"providers": slices.Sorted(maps.Keys(cfg.Providers)),
		"storage":   cfg.Storage.Kind,
		"stateMode": cfg.StateToken.Mode,
	})

	encryptor, err := crypto.NewEncryptor([]byte(cfg.Session.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create session encryptor: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage, encryptor)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	handlers, err := buildHandlers(cfg, store, encryptor)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	handlers.Health = server.NewHealthHandler()
	httpServer := server.NewHTTPServer(server.NewRouter(handlers, cfg.Server), cfg.Server.Addr)
	httpServer.OnShutdown(handlers.Health.Drain)

	return &JobFront{
		config:     cfg,
		httpServer: httpServer,
		storage:    store,
		cleanup:    storage.NewCleanupManager(store, cfg.Session.CleanupInterval),
	}, nil
}

func buildHandlers(cfg config.Config, store storage.Storage, encryptor crypto.Encryptor) (server.Handlers, error) {
	codec, err := statetoken.New(statetoken.Mode(cfg.StateToken.Mode), []byte(cfg.StateToken.SigningKey), store)
	if err != nil {
		return server.Handlers{}, fmt.Errorf("failed to setup state tokens: %w", err)
	}

	verifier, err := apiauth.NewVerifier(cfg.APIAuth)
	if err != nil {
		return server.Handlers{}, fmt.Errorf("failed to setup API auth: %w", err)
	}

	recommender, err := profile.NewRecommender(cfg.Recommendations.Enabled, cfg.Recommendations.RequiredFields)
	if err != nil {
		return server.Handlers{}, fmt.Errorf("failed to setup recommendations: %w", err)
	}

	m := metrics.New()
	sessions := session.NewManager(store, encryptor, cfg.Session.TTL)

	h := server.Handlers{
		Sessions: sessions,
		APIAuth:  verifier,
		Profiles: profile.NewResponder(recommender),
		Metrics:  m,
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.Providers)) {
		provider, err := idp.NewProvider(name, cfg.Providers[name])
		if err != nil {
			return server.Handlers{}, fmt.Errorf("failed to setup provider %s: %w", name, err)
		}

		h.Orchestrators = append(h.Orchestrators, handshake.New(provider, codec, sessions, handshake.Config{
			DefaultRedirect: cfg.Server.DefaultRedirect,
			FailureRedirect: cfg.Server.FailureRedirect,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			UpstreamTimeout: cfg.Server.UpstreamTimeout,
		}, handshake.WithObserver(m)))

		if gh, ok := provider.(*idp.GitHubProvider); ok {
			client := githubproxy.NewClient(gh, cfg.Server.UpstreamTimeout, githubproxy.WithObserver(m))
			h.GitHub = githubproxy.NewHandlers(client)
		}
	}

	return h, nil
}

// Run serves until SIGINT, SIGTERM or a server error, then shuts down gracefully
func (j *JobFront) Run() error {
	log.LogInfoWithFields("jobfront", "Starting application", map[string]any{
		"addr": j.config.Server.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		if err := j.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	j.cleanup.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("jobfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("jobfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("jobfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopErr := j.httpServer.Stop(shutdownCtx)
	if stopErr != nil {
		log.LogErrorWithFields("jobfront", "HTTP server shutdown error", map[string]any{
			"error": stopErr.Error(),
		})
	}

	j.cleanup.Stop()
	if err := j.storage.Close(); err != nil {
		log.LogErrorWithFields("jobfront", "Storage close error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("jobfront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return stopErr
}
