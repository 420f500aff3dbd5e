package mirror

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lukemcguire/sitecapture/asset"
)

const (
	defaultConcurrency = 10
	defaultPageTimeout = 30 * time.Second
	defaultUserAgent   = "Mozilla/5.0"
	chunkSize          = 64 * 1024
)

// Config holds mirror run configuration.
type Config struct {
	PageURL            string        // The page to mirror
	Label              string        // Product label; slugified into the output folder name
	OutputRoot         string        // Parent directory of the output folder
	MaxPerCategory     int           // Preview limit per category (0 = unlimited)
	MaxStylesheetRefs  int           // Cap on references processed per stylesheet (0 = unlimited)
	InsecureSkipVerify bool          // Skip TLS certificate verification
	Render             bool          // Accepted for compatibility; dynamic rendering is not performed
	Concurrency        int           // Simultaneous asset transfers (default 10)
	RateLimit          float64       // Asset requests per second (0 = unlimited)
	PageTimeout        time.Duration // Page fetch timeout (default 30s)
	RetryPolicy        RetryPolicy   // Page fetch retry behaviour
	RespectRobots      bool          // Refuse pages disallowed by robots.txt
	UserAgent          string        // User-Agent sent with every request

	// Logger receives operator log lines. Nil discards them.
	Logger logrus.FieldLogger

	// AssetCanceled reports whether a single transfer has been cancelled.
	// It is polled before the request and before every chunk write.
	AssetCanceled func(category asset.Category, rawURL string) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(pageURL string) Config {
	return Config{
		PageURL:     pageURL,
		Label:       "site",
		OutputRoot:  "output",
		Concurrency: defaultConcurrency,
		PageTimeout: defaultPageTimeout,
		RetryPolicy: DefaultRetryPolicy(),
		UserAgent:   defaultUserAgent,
	}
}

// withDefaults fills zero values the same way New always has.
func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = defaultPageTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.OutputRoot == "" {
		c.OutputRoot = "output"
	}
	if c.RetryPolicy.BaseDelay <= 0 {
		c.RetryPolicy = DefaultRetryPolicy()
	}
	if c.RetryPolicy.MaxDelay < c.RetryPolicy.BaseDelay {
		c.RetryPolicy.MaxDelay = c.RetryPolicy.BaseDelay
	}
	if c.Logger == nil {
		c.Logger = discardLogger()
	}
	return c
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
