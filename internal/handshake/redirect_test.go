package handshake

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedirectPolicy_Resolve(t *testing.T) {
	policy := RedirectPolicy{
		Default:        "/profile",
		AllowedOrigins: []string{"https://app.example.com", "http://localhost:3000/"},
	}

	tests := []struct {
		target string
		want   string
	}{
		{"", "/profile"},
		{"/dashboard", "/dashboard"},
		{"/jobs?id=7#top", "/jobs?id=7#top"},
		{"dashboard", "/profile"},
		{"//evil.example.net/x", "/profile"},
		{"/\\evil.example.net", "/profile"},
		{"https://app.example.com/jobs", "https://app.example.com/jobs"},
		{"HTTPS://APP.EXAMPLE.COM/jobs", "HTTPS://APP.EXAMPLE.COM/jobs"},
		{"http://localhost:3000/profile", "http://localhost:3000/profile"},
		{"https://app.example.com.evil.net/", "/profile"},
		{"http://app.example.com/jobs", "/profile"},
		{"javascript:alert(1)", "/profile"},
		{"https://evil.example.net", "/profile"},
		{"%zz", "/profile"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Resolve(tt.target))
		})
	}
}

func TestDecodeReturnURL(t *testing.T) {
	assert.Equal(t, "/dashboard", decodeReturnURL(base64.StdEncoding.EncodeToString([]byte("/dashboard"))))
	assert.Equal(t, "/dashboard", decodeReturnURL("  "+base64.StdEncoding.EncodeToString([]byte("/dashboard"))+" "))
	assert.Equal(t, "", decodeReturnURL(""))
	assert.Equal(t, "", decodeReturnURL("***"))
}
