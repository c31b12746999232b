package envutil

import (
	"os"
	"strings"
)

// IsDev reports whether JOBFRONT_ENV selects development mode, where cookies
// drop the Secure flag so the handshake works over plain http://localhost
func IsDev() bool {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("JOBFRONT_ENV")))
	return env == "development" || env == "dev"
}
