package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func testSettings() Settings {
	return Settings{
		Name:             "reasoning-service",
		FailureThreshold: 3,
		RecoveryTimeout:  50 * time.Millisecond,
		SuccessThreshold: 2,
		MonitoringPeriod: time.Second,
	}
}

func fail(b *Breaker) {
	_, _ = b.Execute(func() (any, error) { return nil, errBoom })
}

func succeed(b *Breaker) {
	_, _ = b.Execute(func() (any, error) { return "ok", nil })
}

// TestBreaker_OpensAfterFailureThreshold is spec.md's P8: after N failures
// within W, state is OPEN.
func TestBreaker_OpensAfterFailureThreshold(t *testing.T) {
	b := New(testSettings())
	for i := 0; i < 3; i++ {
		fail(b)
	}
	assert.Equal(t, Open, b.State())

	_, err := b.Execute(func() (any, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

// TestBreaker_HalfOpenAfterRecoveryTimeout is spec.md's P8: after T in
// OPEN it transitions to HALF_OPEN and admits a probe.
func TestBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	s := testSettings()
	b := New(s)
	for i := 0; i < 3; i++ {
		fail(b)
	}
	require.Equal(t, Open, b.State())

	time.Sleep(s.RecoveryTimeout + 20*time.Millisecond)
	succeed(b)
	assert.Equal(t, HalfOpen, b.State())
}

// TestBreaker_ClosesAfterSuccessThresholdInHalfOpen is spec.md's P8: K
// consecutive successes in HALF_OPEN close the breaker and reset counters.
func TestBreaker_ClosesAfterSuccessThresholdInHalfOpen(t *testing.T) {
	s := testSettings()
	b := New(s)
	for i := 0; i < 3; i++ {
		fail(b)
	}
	time.Sleep(s.RecoveryTimeout + 20*time.Millisecond)

	succeed(b)
	succeed(b)
	assert.Equal(t, Closed, b.State())
}

// TestBreaker_HalfOpenFailureReopens is spec.md's P8: any failure during
// HALF_OPEN reopens the circuit and restarts the recovery timer.
func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	s := testSettings()
	b := New(s)
	for i := 0; i < 3; i++ {
		fail(b)
	}
	time.Sleep(s.RecoveryTimeout + 20*time.Millisecond)

	fail(b)
	assert.Equal(t, Open, b.State())
}

func TestBreaker_ForceOpenRejectsImmediately(t *testing.T) {
	b := New(testSettings())
	b.ForceOpen()
	_, err := b.Execute(func() (any, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	b.ForceClose()
	_, err = b.Execute(func() (any, error) { return "ok", nil })
	assert.NoError(t, err)
}

func TestBreaker_MetricsTracksCounts(t *testing.T) {
	b := New(testSettings())
	succeed(b)
	fail(b)

	m := b.Metrics()
	assert.EqualValues(t, 2, m.TotalRequests)
	assert.EqualValues(t, 1, m.TotalSuccesses)
	assert.EqualValues(t, 1, m.TotalFailures)
}

func TestRegistry_LazilyCreatesPerEndpointBreakers(t *testing.T) {
	r := NewRegistry(testSettings())

	a := r.Get("tool-a")
	b := r.Get("tool-b")
	again := r.Get("tool-a")

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)

	snap := r.Snapshot()
	assert.Contains(t, snap, "tool-a")
	assert.Contains(t, snap, "tool-b")
}
