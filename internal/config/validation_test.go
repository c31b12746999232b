package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRawConfig = `{
	"version": "v1",
	"server": {
		"baseURL": "http://localhost:8080",
		"addr": ":8080",
		"allowedOrigins": ["http://localhost:3000"]
	},
	"session": {"encryptionKey": {"$env": "ENC_KEY"}},
	"stateToken": {"mode": "stored"},
	"storage": {"kind": "sqlite", "path": "jobfront.db"},
	"providers": {
		"linkedin": {
			"clientId": {"$env": "LI_ID"},
			"clientSecret": {"$env": "LI_SECRET"},
			"redirectUri": "http://localhost:8080/linkedin/callback"
		}
	},
	"apiAuth": {"jwtSecret": {"$env": "JWT_SECRET"}}
}`

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name          string
		config        string
		wantErrors    []string
		wantWarnings  []string
		wantErrCount  int
		wantWarnCount int
	}{
		{
			name:   "valid config",
			config: validRawConfig,
		},
		{
			name:         "invalid json",
			config:       `{"version": `,
			wantErrors:   []string{"invalid JSON"},
			wantErrCount: 1,
		},
		{
			name: "plain text secrets",
			config: strings.Replace(validRawConfig,
				`"jwtSecret": {"$env": "JWT_SECRET"}`, `"jwtSecret": "hunter2"`, 1),
			wantErrors:   []string{"jwtSecret must use environment variable reference"},
			wantErrCount: 1,
		},
		{
			name: "bash style syntax",
			config: strings.Replace(validRawConfig,
				`"clientSecret": {"$env": "LI_SECRET"}`, `"clientSecret": "${LI_SECRET}"`, 1),
			wantErrors:    []string{"found bash-style syntax '${LI_SECRET}'"},
			wantWarnings:  []string{"found bash-style syntax '${LI_SECRET}'"},
			wantErrCount:  1,
			wantWarnCount: 1,
		},
		{
			name:          "unknown storage kind",
			config:        strings.Replace(validRawConfig, `"kind": "sqlite"`, `"kind": "redis"`, 1),
			wantErrors:    []string{"unknown kind 'redis'"},
			wantErrCount:  1,
			wantWarnCount: 0,
		},
		{
			name:          "plain state mode warns",
			config:        strings.Replace(validRawConfig, `"mode": "stored"`, `"mode": "plain"`, 1),
			wantWarnings:  []string{"plain state tokens are unsigned"},
			wantWarnCount: 1,
		},
		{
			name: "missing sections",
			config: `{
				"version": "v1",
				"server": {"baseURL": "http://localhost:8080", "addr": ":8080", "allowedOrigins": ["x"]}
			}`,
			wantErrors:   []string{"session field is required", "providers field is required", "apiAuth field is required"},
			wantErrCount: 3,
		},
		{
			name:          "bad duration",
			config:        strings.Replace(validRawConfig, `"addr": ":8080",`, `"addr": ":8080", "upstreamTimeout": "soon",`, 1),
			wantErrors:    []string{"invalid duration 'soon'"},
			wantErrCount:  1,
			wantWarnCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.config), 0o600))

			result, err := ValidateFile(path)
			require.NoError(t, err)

			assert.Len(t, result.Errors, tt.wantErrCount, "errors: %+v", result.Errors)
			assert.Len(t, result.Warnings, tt.wantWarnCount, "warnings: %+v", result.Warnings)
			assert.Equal(t, tt.wantErrCount == 0, result.IsValid())

			for _, want := range tt.wantErrors {
				assert.True(t, containsMessage(result.Errors, want), "expected error containing %q in %+v", want, result.Errors)
			}
			for _, want := range tt.wantWarnings {
				assert.True(t, containsMessage(result.Warnings, want), "expected warning containing %q in %+v", want, result.Warnings)
			}
		})
	}
}

func TestValidateFile_Missing(t *testing.T) {
	_, err := ValidateFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func containsMessage(issues []ValidationError, substr string) bool {
	for _, issue := range issues {
		if strings.Contains(issue.Message, substr) {
			return true
		}
	}
	return false
}
