package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ParsePageURL validates a page URL given by the operator and returns it in
// canonical form:
// - scheme must be http or https
// - scheme and host are lowercased
// - an empty path becomes "/"
// - the fragment is dropped; the query is kept untouched
func ParsePageURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("page URL is empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL %q: %w", rawURL, err)
	}

	if !IsHTTPScheme(rawURL) || parsed.Host == "" {
		return nil, fmt.Errorf("page URL %q must start with http:// or https:// and name a host", rawURL)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	return parsed, nil
}

// SplitFragment returns rawURL without its fragment, plus the fragment
// including its leading '#' (empty when there is none).
func SplitFragment(rawURL string) (string, string) {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		return rawURL[:i], rawURL[i:]
	}
	return rawURL, ""
}
