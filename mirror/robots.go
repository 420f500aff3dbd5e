package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// RobotsChecker tests a page URL against its host's robots.txt.
type RobotsChecker struct {
	client *http.Client
}

// NewRobotsChecker creates a RobotsChecker with the given HTTP client.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{client: client}
}

// Allowed reports whether userAgent may fetch pageURL. Fetch and parse
// problems fail open: the result is true alongside the error.
func (r *RobotsChecker) Allowed(ctx context.Context, pageURL *url.URL, userAgent string) (bool, error) {
	if pageURL.Host == "" {
		return true, nil
	}
	robotsURL := (&url.URL{Scheme: pageURL.Scheme, Host: pageURL.Host, Path: "/robots.txt"}).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return true, fmt.Errorf("create robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("fetch robots.txt for host %s: %w", pageURL.Host, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if readErr != nil {
		return true, fmt.Errorf("read robots.txt for host %s: %w", pageURL.Host, readErr)
	}
	if closeErr != nil {
		return true, fmt.Errorf("close robots.txt response for host %s: %w", pageURL.Host, closeErr)
	}

	// 404 means no rules; 5xx fails open.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return true, nil
	}

	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return true, fmt.Errorf("parse robots.txt for host %s: %w", pageURL.Host, err)
	}
	if robots == nil {
		return true, nil
	}

	p := pageURL.EscapedPath()
	if p == "" {
		p = "/"
	}
	return robots.TestAgent(p, userAgent), nil
}
