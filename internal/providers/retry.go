package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrProviderExhausted is returned when every retry attempt has failed.
// The orchestrator converts it into the safe-fallback escalation result.
var ErrProviderExhausted = errors.New("providers: all retry attempts failed")

// RetryConfig controls ExecuteWithRetry behaviour.
type RetryConfig struct {
	MaxAttempts int           // total attempts (default 3)
	BaseDelay   time.Duration // linear backoff unit: attempt N waits N × BaseDelay (default 1s)
	Keys        *KeyPool      // rotated on rate-limit errors; nil = no rotation
}

// DefaultRetryConfig returns the standard retry policy.
func DefaultRetryConfig(keys *KeyPool) RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Keys:        keys,
	}
}

// ExecuteWithRetry runs op with bounded retries and rotation-on-rate-limit.
//
// Rate-limit errors always rotate the key pool before the next attempt; the
// retry goes straight back out on the fresh key unless the server named a
// Retry-After wait. Timeouts are retryable but never rotate — an overloaded
// upstream is not a quota problem. Backoff is linear (BaseDelay × attempt
// number), no jitter. When the final attempt fails, the last error is wrapped
// in ErrProviderExhausted.
func ExecuteWithRetry[T any](ctx context.Context, cfg RetryConfig, op func() (T, error)) (T, error) {
	var zero T

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		rateLimited := IsRateLimit(err)
		if rateLimited && cfg.Keys != nil {
			cfg.Keys.Rotate()
			slog.Warn("provider rate limited, rotated key", "attempt", attempt, "error", err)
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		var wait time.Duration
		if rateLimited {
			wait = retryAfterWait(err)
		} else {
			wait = cfg.BaseDelay * time.Duration(attempt)
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return zero, fmt.Errorf("%w: %w", ErrProviderExhausted, lastErr)
}

// retryAfterWait extracts the server-requested wait from a rate-limit error.
// Zero means retry immediately on the rotated key.
func retryAfterWait(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}

// rateLimitMarkers are lowercase substrings that identify quota/rate-limit
// errors in provider error text.
var rateLimitMarkers = []string{
	"rate limit",
	"rate_limit",
	"quota",
	"resource_exhausted",
	"too many requests",
}

// IsRateLimit reports whether err is a rate-limit or quota signal.
// HTTP 429 is authoritative; otherwise the error text is scanned for known
// quota keywords. Timeouts are explicitly excluded.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusTooManyRequests
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
