// Package urlutil holds the URL handling shared by the redirect guard and the GitHub proxy.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// JoinPath appends escaped path segments to base. Segments are escaped individually,
// so a user-supplied "a/b" stays one segment.
func JoinPath(base string, segments ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	rawPath := strings.TrimRight(u.EscapedPath(), "/")
	path := strings.TrimRight(u.Path, "/")
	for _, s := range segments {
		rawPath += "/" + url.PathEscape(s)
		path += "/" + s
	}
	u.Path = path
	u.RawPath = rawPath
	return u.String(), nil
}

// Origin returns the lowercased scheme://host of an http(s) URL
func Origin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

// IsLocalPath reports whether target is a path on the current site.
// Protocol-relative ("//host") and backslash forms count as absolute, as browsers treat them.
func IsLocalPath(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}
