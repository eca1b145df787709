package breaker

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryManager_SucceedsWithoutRetryOnFirstTry(t *testing.T) {
	m := NewRetryManager(RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}, NetworkRetryable)
	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryManager_RetriesUpToMaxOnRetryableError(t *testing.T) {
	m := NewRetryManager(RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, NetworkRetryable)
	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		return errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial + 2 retries
}

func TestRetryManager_StopsImmediatelyOnNonRetryableError(t *testing.T) {
	m := NewRetryManager(RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, HTTPRetryable)
	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		return ErrUnauthorized
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryManager_SucceedsAfterTransientFailures(t *testing.T) {
	m := NewRetryManager(RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, NetworkRetryable)
	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &net.DNSError{IsTimeout: true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryManager_RespectsContextCancellation(t *testing.T) {
	m := NewRetryManager(RetryConfig{MaxRetries: 100, BaseDelay: 20 * time.Millisecond, MaxDelay: 50 * time.Millisecond}, NetworkRetryable)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	err := m.Do(ctx, func() error {
		calls++
		return errors.New("timeout")
	})
	require.Error(t, err)
	assert.Less(t, calls, 100)
}

func TestHTTPRetryable_ClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		code      int
		retryable bool
	}{
		{408, true},
		{425, true},
		{429, true},
		{500, true},
		{503, true},
		{501, false},
		{505, false},
		{400, false},
		{404, false},
	}
	for _, c := range cases {
		err := &HTTPStatusError{StatusCode: c.code}
		assert.Equal(t, c.retryable, HTTPRetryable(err), "status %d", c.code)
	}
}

func TestReasoningRetryable_ClassifiesTransientOverload(t *testing.T) {
	assert.True(t, ReasoningRetryable(errors.New("rate limit exceeded")))
	assert.True(t, ReasoningRetryable(errors.New("service is busy, try again")))
	assert.False(t, ReasoningRetryable(ErrUnauthorized))
}

func TestNetworkRetryable_NeverRetriesAuthFailure(t *testing.T) {
	assert.False(t, NetworkRetryable(ErrUnauthorized))
}
