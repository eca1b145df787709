package breaker

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrUnauthorized marks an authentication/authorization failure. No
// Predicate in this package ever classifies it as retryable (spec.md
// §4.1: "Auth failures never retry").
var ErrUnauthorized = errors.New("breaker: unauthorized")

// Predicate decides whether an error from a failed call is worth retrying.
type Predicate func(err error) bool

// RetryConfig parameters the exponential backoff schedule: delay is
// base*2^i, capped at maxDelay, with optional ±25% jitter, for up to
// maxRetries attempts after the initial one (spec.md §4.1).
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool
}

// RetryManager retries a call per Predicate using RetryConfig's schedule.
type RetryManager struct {
	cfg       RetryConfig
	predicate Predicate
}

// NewRetryManager builds a RetryManager.
func NewRetryManager(cfg RetryConfig, predicate Predicate) *RetryManager {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &RetryManager{cfg: cfg, predicate: predicate}
}

// Do runs fn, retrying on failure per the configured predicate and
// schedule, until it succeeds, the predicate rejects the error as
// non-retryable, retries are exhausted, or ctx is cancelled.
func (m *RetryManager) Do(ctx context.Context, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.cfg.BaseDelay
	eb.MaxInterval = m.cfg.MaxDelay
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0 // bounded by MaxRetries, not elapsed wall time
	if m.cfg.Jitter {
		eb.RandomizationFactor = 0.25
	} else {
		eb.RandomizationFactor = 0
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(m.cfg.MaxRetries)), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if m.predicate != nil && !m.predicate(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

// NetworkRetryable classifies connection-level transport failures as
// retryable: timeouts, connection reset/refused, broken pipe, DNS
// failure — mirrored from the teacher's isConnectionError classifier.
func NetworkRetryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"connection closed",
		"no such host",
		"unreachable",
		"timeout",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// HTTPStatusError carries the HTTP status of a failed outbound call so
// HTTPRetryable can classify it without string matching.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return "breaker: http status " + strconv.Itoa(e.StatusCode)
}

// HTTPRetryable classifies HTTP responses as retryable: 408, 425, 429,
// and 5xx except 501 and 505 (spec.md §4.1).
func HTTPRetryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	var httpErr *HTTPStatusError
	if !errors.As(err, &httpErr) {
		return NetworkRetryable(err)
	}
	code := httpErr.StatusCode
	switch code {
	case 408, 425, 429:
		return true
	case 501, 505:
		return false
	default:
		return code >= 500 && code < 600
	}
}

// ReasoningRetryable classifies reasoning-service failures as retryable:
// rate-limit, timeout, transient overload (spec.md §4.1).
func ReasoningRetryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return HTTPRetryable(err)
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"rate limit", "rate-limit", "timeout", "overloaded", "try again", "busy"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return NetworkRetryable(err)
}
