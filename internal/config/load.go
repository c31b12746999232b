package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dgellow/jobfront/internal/log"
)

// SupportedVersion is the config version prefix this build understands
const SupportedVersion = "v1"

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse processes raw config JSON. Env references are resolved during unmarshaling.
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, SupportedVersion) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	ApplyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig rejects plain-text secrets before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	checks := []struct {
		section string
		field   string
	}{
		{"session", "encryptionKey"},
		{"stateToken", "signingKey"},
		{"storage", "dsn"},
		{"apiAuth", "jwtSecret"},
	}
	for _, c := range checks {
		section, ok := rawConfig[c.section].(map[string]any)
		if !ok {
			continue
		}
		if err := requireEnvRef(section, c.field); err != nil {
			return err
		}
	}

	if providers, ok := rawConfig["providers"].(map[string]any); ok {
		for name, p := range providers {
			provider, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if err := requireEnvRef(provider, "clientSecret"); err != nil {
				return fmt.Errorf("provider %s: %w", name, err)
			}
		}
	}
	return nil
}

func requireEnvRef(section map[string]any, field string) error {
	value, exists := section[field]
	if !exists {
		return nil
	}
	if _, isString := value.(string); isString {
		return fmt.Errorf("%s must use environment variable reference for security", field)
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", field)
		}
	}
	return nil
}

// ApplyDefaults fills in optional fields left empty in the config file
func ApplyDefaults(config *Config) {
	if config.Server.DefaultRedirect == "" {
		config.Server.DefaultRedirect = DefaultRedirect
	}
	if config.Server.FailureRedirect == "" {
		config.Server.FailureRedirect = DefaultFailureRedirect
	}
	if config.Server.UpstreamTimeout == 0 {
		config.Server.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if config.Session.TTL == 0 {
		config.Session.TTL = DefaultSessionTTL
	}
	if config.Session.CleanupInterval == 0 {
		config.Session.CleanupInterval = DefaultCleanupInterval
	}
	if config.StateToken.Mode == "" {
		config.StateToken.Mode = "plain"
	}
	if config.Storage.Kind == "" {
		config.Storage.Kind = StorageMemory
	}
	if config.Storage.Kind == StorageFirestore && config.Storage.FirestoreDatabase == "" {
		config.Storage.FirestoreDatabase = "(default)"
	}
	if config.Storage.Kind == StorageFirestore && config.Storage.FirestoreCollection == "" {
		config.Storage.FirestoreCollection = "jobfront"
	}
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	if _, err := url.Parse(config.Server.BaseURL); err != nil {
		return fmt.Errorf("server.baseURL is invalid: %w", err)
	}
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if config.Server.UpstreamTimeout < 0 {
		return fmt.Errorf("server.upstreamTimeout cannot be negative")
	}
	if config.Server.RateLimit.RequestsPerSecond < 0 || config.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("server.rateLimit values cannot be negative")
	}
	if !strings.HasPrefix(config.Server.DefaultRedirect, "/") {
		return fmt.Errorf("server.defaultRedirect must be a relative path")
	}

	if len(config.Session.EncryptionKey) != 32 {
		return fmt.Errorf("session.encryptionKey must be exactly 32 bytes, got %d", len(config.Session.EncryptionKey))
	}
	if config.Session.TTL < 0 {
		return fmt.Errorf("session.ttl cannot be negative")
	}
	if config.Session.CleanupInterval > config.Session.TTL {
		log.LogWarn("Session cleanup interval is greater than session ttl")
	}

	if err := validateStateToken(config.StateToken); err != nil {
		return fmt.Errorf("stateToken: %w", err)
	}
	if err := validateStorage(config.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if len(config.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	for name, p := range config.Providers {
		if err := validateProvider(name, p); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}

	if len(config.APIAuth.JWTSecret) < 32 {
		return fmt.Errorf("apiAuth.jwtSecret must be at least 32 bytes long for HMAC-SHA256")
	}
	return nil
}

func validateStateToken(st StateTokenConfig) error {
	switch st.Mode {
	case "plain", "stored":
	case "signed":
		if len(st.SigningKey) < 32 {
			return fmt.Errorf("signingKey must be at least 32 bytes for signed mode")
		}
	default:
		return fmt.Errorf("unknown mode '%s' - supported modes: plain, signed, stored", st.Mode)
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	switch s.Kind {
	case StorageMemory:
	case StorageFirestore:
		if s.GCPProject == "" {
			return fmt.Errorf("gcpProject is required for firestore storage")
		}
	case StoragePostgres:
		if s.DSN == "" {
			return fmt.Errorf("dsn is required for postgres storage")
		}
	case StorageSQLite:
		if s.Path == "" {
			return fmt.Errorf("path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("unknown kind '%s' - supported kinds: memory, firestore, postgres, sqlite", s.Kind)
	}
	return nil
}

func validateProvider(name string, p ProviderConfig) error {
	switch name {
	case "linkedin", "github":
	default:
		return fmt.Errorf("unknown provider - supported providers: linkedin, github")
	}
	if p.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("clientSecret is required")
	}
	if p.RedirectURI == "" {
		return fmt.Errorf("redirectUri is required")
	}
	return nil
}

// DefaultConfigJSON is written by -config-init
const DefaultConfigJSON = `{
  "version": "v1",
  "server": {
    "baseURL": "http://localhost:8080",
    "addr": ":8080",
    "allowedOrigins": ["http://localhost:3000"],
    "defaultRedirect": "/profile",
    "upstreamTimeout": "15s",
    "rateLimit": {"requestsPerSecond": 5, "burst": 10}
  },
  "session": {
    "ttl": "24h",
    "cleanupInterval": "5m",
    "encryptionKey": {"$env": "JOBFRONT_ENCRYPTION_KEY"}
  },
  "stateToken": {
    "mode": "plain"
  },
  "storage": {
    "kind": "memory"
  },
  "providers": {
    "linkedin": {
      "clientId": {"$env": "LINKEDIN_CLIENT_ID"},
      "clientSecret": {"$env": "LINKEDIN_CLIENT_SECRET"},
      "redirectUri": "http://localhost:8080/linkedin/callback"
    },
    "github": {
      "clientId": {"$env": "GITHUB_CLIENT_ID"},
      "clientSecret": {"$env": "GITHUB_CLIENT_SECRET"},
      "redirectUri": "http://localhost:3000/github/callback"
    }
  },
  "apiAuth": {
    "jwtSecret": {"$env": "JOBFRONT_JWT_SECRET"}
  },
  "recommendations": {
    "enabled": false
  }
}
`
