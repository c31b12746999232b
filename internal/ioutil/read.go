// Package ioutil reads upstream response bodies into error messages.
package ioutil

import (
	"fmt"
	"io"
	"strings"
)

// ReadLimited returns at most limit bytes of r with surrounding whitespace removed.
// A body cut at limit is marked with a trailing "...". Read failures are described
// in the result rather than returned, since the caller is already building an error.
func ReadLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	truncated := int64(len(body)) > limit
	if truncated {
		body = body[:limit]
	}
	s := strings.TrimSpace(string(body))
	if truncated {
		s += "..."
	}
	return s
}
