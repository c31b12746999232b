package handshake

import (
	"strings"

	"github.com/dgellow/jobfront/internal/statetoken"
	"github.com/dgellow/jobfront/internal/urlutil"
)

// decodeReturnURL decodes the base64 fromUrl query value. Undecodable input yields "".
func decodeReturnURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	decoded, err := statetoken.DecodeBase64(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(decoded))
}

// RedirectPolicy resolves post-login destinations. Only same-site paths and
// explicitly allowed origins are honored; anything else gets Default.
type RedirectPolicy struct {
	Default        string
	AllowedOrigins []string
}

// Resolve returns target when it is safe to redirect to, otherwise Default
func (p RedirectPolicy) Resolve(target string) string {
	if target == "" {
		return p.Default
	}
	if urlutil.IsLocalPath(target) {
		return target
	}

	origin, err := urlutil.Origin(target)
	if err != nil {
		return p.Default
	}
	for _, allowed := range p.AllowedOrigins {
		if a, err := urlutil.Origin(allowed); err == nil && a == origin {
			return target
		}
	}
	return p.Default
}
