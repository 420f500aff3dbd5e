package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// IsRelative reports whether ref is written as a relative reference: no
// scheme, no host and not scheme-relative ("//cdn.example/x").
func IsRelative(ref string) bool {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "//") {
		return false
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return parsed.Scheme == "" && parsed.Host == ""
}

// ResolveReference resolves a possibly-relative ref URL against a base URL.
// If ref is absolute, it is returned as-is. Otherwise it is resolved
// relative to base using net/url.URL.ResolveReference, so a query or
// fragment on base never leaks into the joined path.
func ResolveReference(base string, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}

	return Resolve(baseURL, ref)
}

// Resolve is ResolveReference with an already parsed base.
func Resolve(base *url.URL, ref string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}

	return base.ResolveReference(refURL).String(), nil
}
