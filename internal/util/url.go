package util

import (
	"net/url"
	"strings"
)

// IsRedirectSafe reports whether a callbackURL or redirectTo value may be
// followed after sign-in, email verification or password reset. Empty and
// rooted same-site paths are accepted, as are http(s) URLs on the host of
// baseURL. Anything that could be read by a browser as another origin is
// rejected.
func IsRedirectSafe(target, baseURL string) bool {
	if target == "" {
		return true
	}
	// "\" is treated as "/" by browsers; CR/LF would split the Location header
	if strings.ContainsAny(target, "\\\r\n") {
		return false
	}
	if strings.HasPrefix(target, "/") {
		return !strings.HasPrefix(target, "//")
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	base, err := url.Parse(baseURL)
	return err == nil && strings.EqualFold(u.Host, base.Host)
}

// SafeRedirect returns target when IsRedirectSafe accepts it and is
// non-empty, otherwise fallback
func SafeRedirect(target, baseURL, fallback string) string {
	if target != "" && IsRedirectSafe(target, baseURL) {
		return target
	}
	return fallback
}
