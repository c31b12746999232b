package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ParseConfigValue resolves a config value that is either a plain string or an
// environment reference object {"$env": "VAR_NAME"}.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}

// parseSecret resolves a secret, which must be an env reference
func parseSecret(raw json.RawMessage, field string) (Secret, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return "", fmt.Errorf("%s must use an environment variable reference {\"$env\": \"VAR_NAME\"}", field)
	}
	value, err := ParseConfigValue(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", field, err)
	}
	return Secret(value), nil
}

func parseDuration(s, field string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}

// UnmarshalJSON implements custom unmarshaling for ServerConfig
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	type rawServer struct {
		BaseURL         json.RawMessage `json:"baseURL"`
		Addr            json.RawMessage `json:"addr"`
		AllowedOrigins  []string        `json:"allowedOrigins"`
		DefaultRedirect string          `json:"defaultRedirect"`
		FailureRedirect string          `json:"failureRedirect"`
		UpstreamTimeout string          `json:"upstreamTimeout"`
		RateLimit       RateLimitConfig `json:"rateLimit"`
	}

	var raw rawServer
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if s.BaseURL, err = ParseConfigValue(raw.BaseURL); err != nil {
		return fmt.Errorf("parsing baseURL: %w", err)
	}
	if s.Addr, err = ParseConfigValue(raw.Addr); err != nil {
		return fmt.Errorf("parsing addr: %w", err)
	}
	if s.UpstreamTimeout, err = parseDuration(raw.UpstreamTimeout, "upstreamTimeout"); err != nil {
		return err
	}
	s.AllowedOrigins = raw.AllowedOrigins
	s.DefaultRedirect = raw.DefaultRedirect
	s.FailureRedirect = raw.FailureRedirect
	s.RateLimit = raw.RateLimit
	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	type rawSession struct {
		TTL             string          `json:"ttl"`
		CleanupInterval string          `json:"cleanupInterval"`
		EncryptionKey   json.RawMessage `json:"encryptionKey"`
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if s.TTL, err = parseDuration(raw.TTL, "ttl"); err != nil {
		return err
	}
	if s.CleanupInterval, err = parseDuration(raw.CleanupInterval, "cleanupInterval"); err != nil {
		return err
	}
	if s.EncryptionKey, err = parseSecret(raw.EncryptionKey, "encryptionKey"); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for StateTokenConfig
func (s *StateTokenConfig) UnmarshalJSON(data []byte) error {
	type rawStateToken struct {
		Mode       string          `json:"mode"`
		SigningKey json.RawMessage `json:"signingKey"`
	}

	var raw rawStateToken
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Mode = raw.Mode
	var err error
	s.SigningKey, err = parseSecret(raw.SigningKey, "signingKey")
	return err
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	type rawStorage struct {
		Kind                StorageKind     `json:"kind"`
		GCPProject          json.RawMessage `json:"gcpProject"`
		FirestoreDatabase   string          `json:"firestoreDatabase"`
		FirestoreCollection string          `json:"firestoreCollection"`
		DSN                 json.RawMessage `json:"dsn"`
		Path                json.RawMessage `json:"path"`
	}

	var raw rawStorage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Kind = raw.Kind
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.FirestoreCollection = raw.FirestoreCollection

	var err error
	if s.GCPProject, err = ParseConfigValue(raw.GCPProject); err != nil {
		return fmt.Errorf("parsing gcpProject: %w", err)
	}
	if s.DSN, err = parseSecret(raw.DSN, "dsn"); err != nil {
		return err
	}
	if s.Path, err = ParseConfigValue(raw.Path); err != nil {
		return fmt.Errorf("parsing path: %w", err)
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for ProviderConfig
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider struct {
		ClientID     json.RawMessage `json:"clientId"`
		ClientSecret json.RawMessage `json:"clientSecret"`
		RedirectURI  json.RawMessage `json:"redirectUri"`
		Scopes       []string        `json:"scopes"`
		AuthURL      string          `json:"authUrl"`
		TokenURL     string          `json:"tokenUrl"`
		UserInfoURL  string          `json:"userInfoUrl"`
		APIBaseURL   string          `json:"apiBaseUrl"`
	}

	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if p.ClientID, err = ParseConfigValue(raw.ClientID); err != nil {
		return fmt.Errorf("parsing clientId: %w", err)
	}
	if p.ClientSecret, err = parseSecret(raw.ClientSecret, "clientSecret"); err != nil {
		return err
	}
	if p.RedirectURI, err = ParseConfigValue(raw.RedirectURI); err != nil {
		return fmt.Errorf("parsing redirectUri: %w", err)
	}
	p.Scopes = raw.Scopes
	p.AuthURL = raw.AuthURL
	p.TokenURL = raw.TokenURL
	p.UserInfoURL = raw.UserInfoURL
	p.APIBaseURL = raw.APIBaseURL
	return nil
}

// UnmarshalJSON implements custom unmarshaling for APIAuthConfig
func (a *APIAuthConfig) UnmarshalJSON(data []byte) error {
	type rawAPIAuth struct {
		JWTSecret json.RawMessage `json:"jwtSecret"`
		Issuer    string          `json:"issuer"`
		Audience  string          `json:"audience"`
	}

	var raw rawAPIAuth
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Issuer = raw.Issuer
	a.Audience = raw.Audience
	var err error
	a.JWTSecret, err = parseSecret(raw.JWTSecret, "jwtSecret")
	return err
}
