package config

import (
	"encoding/json"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the persistence backend
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageFirestore StorageKind = "firestore"
	StoragePostgres  StorageKind = "postgres"
	StorageSQLite    StorageKind = "sqlite"
)

// Config is the fully resolved jobfront configuration
type Config struct {
	Version         string                    `json:"version"`
	Server          ServerConfig              `json:"server"`
	Session         SessionConfig             `json:"session"`
	StateToken      StateTokenConfig          `json:"stateToken"`
	Storage         StorageConfig             `json:"storage"`
	Providers       map[string]ProviderConfig `json:"providers"`
	APIAuth         APIAuthConfig             `json:"apiAuth"`
	Recommendations RecommendationsConfig     `json:"recommendations"`
}

// RateLimitConfig limits requests per client IP on the auth endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`
}

// ServerConfig configures the HTTP listener and redirect targets
type ServerConfig struct {
	BaseURL         string          `json:"baseURL"`
	Addr            string          `json:"addr"`
	AllowedOrigins  []string        `json:"allowedOrigins"`
	DefaultRedirect string          `json:"defaultRedirect"`
	FailureRedirect string          `json:"failureRedirect"`
	UpstreamTimeout time.Duration   `json:"upstreamTimeout"`
	RateLimit       RateLimitConfig `json:"rateLimit"`
}

// SessionConfig configures established sessions
type SessionConfig struct {
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
	EncryptionKey   Secret        `json:"encryptionKey"`
}

// StateTokenConfig selects how the OAuth state parameter is protected
type StateTokenConfig struct {
	Mode       string `json:"mode"`
	SigningKey Secret `json:"signingKey"`
}

// StorageConfig selects and parameterizes the storage backend
type StorageConfig struct {
	Kind                StorageKind `json:"kind"`
	GCPProject          string      `json:"gcpProject,omitempty"`
	FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string      `json:"firestoreCollection,omitempty"`
	DSN                 Secret      `json:"dsn,omitempty"`
	Path                string      `json:"path,omitempty"`
}

// ProviderConfig holds OAuth client settings for one identity provider.
// AuthURL, TokenURL, UserInfoURL and APIBaseURL override the provider defaults.
type ProviderConfig struct {
	ClientID     string   `json:"clientId"`
	ClientSecret Secret   `json:"clientSecret"`
	RedirectURI  string   `json:"redirectUri"`
	Scopes       []string `json:"scopes,omitempty"`
	AuthURL      string   `json:"authUrl,omitempty"`
	TokenURL     string   `json:"tokenUrl,omitempty"`
	UserInfoURL  string   `json:"userInfoUrl,omitempty"`
	APIBaseURL   string   `json:"apiBaseUrl,omitempty"`
}

// APIAuthConfig verifies the bearer tokens the frontend sends to start a link
type APIAuthConfig struct {
	JWTSecret Secret `json:"jwtSecret"`
	Issuer    string `json:"issuer,omitempty"`
	Audience  string `json:"audience,omitempty"`
}

// RecommendationsConfig toggles profile-completeness advisories
type RecommendationsConfig struct {
	Enabled        bool     `json:"enabled"`
	RequiredFields []string `json:"requiredFields,omitempty"`
}

// Defaults applied by Load when fields are left empty
const (
	DefaultRedirect        = "/profile"
	DefaultFailureRedirect = "/failure"
	DefaultUpstreamTimeout = 15 * time.Second
	DefaultSessionTTL      = 24 * time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)
