package idp

import (
	"fmt"

	"github.com/dgellow/jobfront/internal/config"
	"golang.org/x/oauth2"
)

// NewProvider creates the Provider registered under name
func NewProvider(name string, cfg config.ProviderConfig) (Provider, error) {
	switch name {
	case "linkedin":
		p := NewLinkedInProvider(
			cfg.ClientID,
			string(cfg.ClientSecret),
			cfg.RedirectURI,
			cfg.Scopes,
		)
		if cfg.AuthURL != "" || cfg.TokenURL != "" {
			p.config.Endpoint = overrideEndpoint(p.config.Endpoint, cfg)
		}
		if cfg.UserInfoURL != "" {
			p.userInfoURL = cfg.UserInfoURL
		}
		return p, nil

	case "github":
		p := NewGitHubProvider(
			cfg.ClientID,
			string(cfg.ClientSecret),
			cfg.RedirectURI,
			cfg.Scopes,
		).WithAPIBaseURL(cfg.APIBaseURL)
		if cfg.AuthURL != "" || cfg.TokenURL != "" {
			p.WithEndpoint(overrideEndpoint(p.config.Endpoint, cfg))
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", name)
	}
}

func overrideEndpoint(base oauth2.Endpoint, cfg config.ProviderConfig) oauth2.Endpoint {
	if cfg.AuthURL != "" {
		base.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		base.TokenURL = cfg.TokenURL
	}
	return base
}
