package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateBytes(data), nil
}

// ValidateBytes validates raw config JSON without resolving env vars
func ValidateBytes(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": \"%s\"", SupportedVersion)
	} else if !strings.HasPrefix(version, SupportedVersion) {
		result.addError("version", "unsupported version '%s' - use '%s'", version, SupportedVersion)
	}

	validateServerStructure(rawConfig, result)
	validateSessionStructure(rawConfig, result)
	validateStateTokenStructure(rawConfig, result)
	validateStorageStructure(rawConfig, result)
	validateProvidersStructure(rawConfig, result)
	validateAPIAuthStructure(rawConfig, result)

	return result
}

func validateServerStructure(rawConfig map[string]any, result *ValidationResult) {
	server, ok := rawConfig["server"].(map[string]any)
	if !ok {
		result.addError("server", "server field is required and must be an object")
		return
	}
	if _, ok := server["baseURL"]; !ok {
		result.addError("server.baseURL", "baseURL is required. Example: \"https://api.example.com\"")
	}
	if _, ok := server["addr"]; !ok {
		result.addError("server.addr", "addr is required. Example: \":8080\" or \"0.0.0.0:8080\"")
	}
	if origins, ok := server["allowedOrigins"].([]any); !ok || len(origins) == 0 {
		result.addWarning("server.allowedOrigins", "no allowed origins configured - browser frontends on other origins cannot call the API and absolute fromUrl redirects will fall back to the default")
	}
	if redirect, ok := server["defaultRedirect"].(string); ok && !strings.HasPrefix(redirect, "/") {
		result.addError("server.defaultRedirect", "defaultRedirect must be a relative path such as \"/profile\"")
	}
	if timeout, ok := server["upstreamTimeout"].(string); ok {
		validateDurationField(timeout, "server.upstreamTimeout", result)
	}
}

func validateSessionStructure(rawConfig map[string]any, result *ValidationResult) {
	session, ok := rawConfig["session"].(map[string]any)
	if !ok {
		result.addError("session", "session field is required and must be an object")
		return
	}
	if key, ok := session["encryptionKey"]; !ok {
		result.addError("session.encryptionKey", "encryptionKey is required. Hint: Must be exactly 32 bytes")
	} else if err := validateEnvVarReference(key, "encryptionKey", "session.encryptionKey"); err != nil {
		result.Errors = append(result.Errors, *err)
	}
	for _, field := range []string{"ttl", "cleanupInterval"} {
		if v, ok := session[field].(string); ok {
			validateDurationField(v, "session."+field, result)
		}
	}
}

func validateStateTokenStructure(rawConfig map[string]any, result *ValidationResult) {
	st, ok := rawConfig["stateToken"].(map[string]any)
	if !ok {
		return
	}
	mode, _ := st["mode"].(string)
	switch mode {
	case "", "plain":
		result.addWarning("stateToken.mode", "plain state tokens are unsigned - consider 'signed' or 'stored'")
	case "stored":
	case "signed":
		key, ok := st["signingKey"]
		if !ok {
			result.addError("stateToken.signingKey", "signingKey is required for signed mode. Hint: Must be at least 32 bytes")
		} else if err := validateEnvVarReference(key, "signingKey", "stateToken.signingKey"); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	default:
		result.addError("stateToken.mode", "unknown mode '%s' - supported modes: plain, signed, stored", mode)
	}
}

func validateStorageStructure(rawConfig map[string]any, result *ValidationResult) {
	storage, ok := rawConfig["storage"].(map[string]any)
	if !ok {
		return
	}
	kind, _ := storage["kind"].(string)
	switch kind {
	case "", "memory":
		result.addWarning("storage.kind", "memory storage loses sessions on restart")
	case "firestore":
		if _, ok := storage["gcpProject"]; !ok {
			result.addError("storage.gcpProject", "gcpProject is required for firestore storage")
		}
	case "postgres":
		dsn, ok := storage["dsn"]
		if !ok {
			result.addError("storage.dsn", "dsn is required for postgres storage")
		} else if err := validateEnvVarReference(dsn, "dsn", "storage.dsn"); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	case "sqlite":
		if _, ok := storage["path"]; !ok {
			result.addError("storage.path", "path is required for sqlite storage. Example: \"jobfront.db\"")
		}
	default:
		result.addError("storage.kind", "unknown kind '%s' - supported kinds: memory, firestore, postgres, sqlite", kind)
	}
}

func validateProvidersStructure(rawConfig map[string]any, result *ValidationResult) {
	providers, ok := rawConfig["providers"].(map[string]any)
	if !ok || len(providers) == 0 {
		result.addError("providers", "providers field is required and must configure at least one of: linkedin, github")
		return
	}
	if _, ok := providers["linkedin"]; !ok {
		result.addWarning("providers.linkedin", "linkedin provider is not configured - profile linking is unavailable")
	}
	for name, p := range providers {
		path := "providers." + name
		if name != "linkedin" && name != "github" {
			result.addError(path, "unknown provider '%s' - supported providers: linkedin, github", name)
			continue
		}
		provider, ok := p.(map[string]any)
		if !ok {
			result.addError(path, "provider must be an object")
			continue
		}
		for _, field := range []string{"clientId", "clientSecret", "redirectUri"} {
			if _, ok := provider[field]; !ok {
				result.addError(path+"."+field, "%s is required for provider configuration", field)
			}
		}
		if secret, ok := provider["clientSecret"]; ok {
			if err := validateEnvVarReference(secret, "clientSecret", path+".clientSecret"); err != nil {
				result.Errors = append(result.Errors, *err)
			}
		}
	}
}

func validateAPIAuthStructure(rawConfig map[string]any, result *ValidationResult) {
	apiAuth, ok := rawConfig["apiAuth"].(map[string]any)
	if !ok {
		result.addError("apiAuth", "apiAuth field is required and must be an object")
		return
	}
	secret, ok := apiAuth["jwtSecret"]
	if !ok {
		result.addError("apiAuth.jwtSecret", "jwtSecret is required. Hint: Must be at least 32 bytes long for HMAC-SHA256")
		return
	}
	if err := validateEnvVarReference(secret, "jwtSecret", "apiAuth.jwtSecret"); err != nil {
		result.Errors = append(result.Errors, *err)
	}
}

func validateDurationField(value, path string, result *ValidationResult) {
	if _, err := parseDuration(value, path); err != nil {
		result.addError(path, "invalid duration '%s' - use Go duration syntax such as \"15s\" or \"24h\"", value)
	}
}

// validateEnvVarReference checks that a secret is an env reference
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax warns about ${VAR} strings anywhere in the config
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
