package mirror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lukemcguire/sitecapture/result"
)

// RetryPolicy configures retry behavior for the page fetch.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries (2 = 3 total attempts)
	BaseDelay  time.Duration // Initial backoff delay (1s)
	MaxDelay   time.Duration // Maximum backoff cap (30s)
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 2 retries (3 attempts), 1s base delay, 30s max delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// fetchPageWithRetry wraps fetchPage with exponential backoff. It retries
// transient failures (network errors, 5xx, 429) but not other 4xx answers.
func fetchPageWithRetry(ctx context.Context, client *http.Client, pageURL, userAgent string, policy RetryPolicy, log logrus.FieldLogger) (*Page, error) {
	backoff := policy.BaseDelay
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Infof("Retrying page fetch in %s (attempt %d of %d): %v", backoff, attempt+1, policy.MaxRetries+1, lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w (while waiting to retry: %w)", ctx.Err(), lastErr)
			case <-time.After(backoff):
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		attempts = attempt + 1
		page, err := fetchPage(ctx, client, pageURL, userAgent, log)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w (after %d attempts)", lastErr, attempts)
}

// shouldRetry reports whether a failed page fetch is worth another attempt.
func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}

	switch result.ClassifyError(err, 0) {
	case result.CategoryTimeout, result.CategoryDNSFailure, result.CategoryConnectionRefused:
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
