// Package breaker implements Seraph's CircuitBreaker + RetryManager (C1):
// a per-endpoint state machine guarding every outbound call (reasoning
// service, tools, alert sink) plus bounded exponential-backoff retry, per
// spec.md §4.1.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker
// is OPEN (or forced open).
var ErrCircuitOpen = errors.New("breaker: circuit open")

// Settings configures a single endpoint's CircuitBreaker (spec.md §4.1
// parameters: failureThreshold N, recoveryTimeout T, successThreshold K,
// monitoringPeriod W).
type Settings struct {
	Name              string
	FailureThreshold  uint32
	RecoveryTimeout   time.Duration
	SuccessThreshold  uint32
	MonitoringPeriod  time.Duration
}

// State mirrors gobreaker's three states under Seraph's own names, so
// callers never import gobreaker directly.
type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return Open
	case gobreaker.StateHalfOpen:
		return HalfOpen
	default:
		return Closed
	}
}

// Metrics is the snapshot spec.md §4.1 requires that gobreaker's own
// Counts type doesn't expose directly (state + lastTransitionAt).
type Metrics struct {
	TotalRequests   uint32
	TotalSuccesses  uint32
	TotalFailures   uint32
	State           State
	LastTransitionAt time.Time
}

// Breaker wraps a gobreaker.CircuitBreaker for one protected endpoint,
// adding ForceOpen/ForceClose (gobreaker has no native force-state API)
// and a Metrics snapshot.
type Breaker struct {
	mu               sync.Mutex
	cb               *gobreaker.CircuitBreaker
	lastTransitionAt time.Time
	forced           *State // nil = not forced
}

// New builds a Breaker from Settings, per spec.md §4.1's three-state
// machine: CLOSED counts failures within MonitoringPeriod against
// FailureThreshold to trip OPEN; OPEN holds for RecoveryTimeout then
// allows probes (HALF_OPEN); SuccessThreshold consecutive probe
// successes in HALF_OPEN return to CLOSED (counters reset), any
// HALF_OPEN failure reopens (timer restarts).
func New(s Settings) *Breaker {
	b := &Breaker{lastTransitionAt: time.Now()}

	gs := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.SuccessThreshold,
		Interval:    s.MonitoringPeriod,
		Timeout:     s.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.mu.Lock()
			b.lastTransitionAt = time.Now()
			b.mu.Unlock()
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(gs)
	return b
}

// Execute runs fn if the breaker admits the call, translating a forced or
// natural OPEN state into ErrCircuitOpen.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	b.mu.Lock()
	forced := b.forced
	b.mu.Unlock()

	if forced != nil && *forced == Open {
		return nil, ErrCircuitOpen
	}

	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return result, err
}

// ForceOpen pins the breaker open regardless of gobreaker's own counters,
// until ForceClose is called.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Open
	b.forced = &s
	b.lastTransitionAt = time.Now()
}

// ForceClose releases any forced-open pin and resets gobreaker's own
// counters by rebuilding its internal generation via a zero-cost no-op
// call pattern: gobreaker has no public reset, so Seraph simply tracks
// the pin at the wrapper level instead of trying to mutate gobreaker state.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forced = nil
	b.lastTransitionAt = time.Now()
}

// State returns the breaker's effective current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	forced := b.forced
	b.mu.Unlock()
	if forced != nil {
		return *forced
	}
	return fromGobreaker(b.cb.State())
}

// Metrics returns a snapshot matching spec.md §4.1's required shape.
func (b *Breaker) Metrics() Metrics {
	counts := b.cb.Counts()
	b.mu.Lock()
	last := b.lastTransitionAt
	b.mu.Unlock()
	return Metrics{
		TotalRequests:    counts.Requests,
		TotalSuccesses:   counts.TotalSuccesses,
		TotalFailures:    counts.TotalFailures,
		State:            b.State(),
		LastTransitionAt: last,
	}
}

// Registry holds one Breaker per protected endpoint name, created lazily
// on first use (spec.md Design Note "Global singletons": no package-level
// singleton — callers own a Registry instance and pass it around).
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	defaults Settings
}

// NewRegistry creates a Registry that lazily constructs breakers using
// defaults (with Name overridden per endpoint) on first Get.
func NewRegistry(defaults Settings) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
	}
}

// Get returns the named endpoint's Breaker, creating it from the
// Registry's defaults if this is the first reference.
func (r *Registry) Get(endpoint string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[endpoint]; ok {
		return b
	}
	s := r.defaults
	s.Name = endpoint
	b := New(s)
	r.breakers[endpoint] = b
	return b
}

// Snapshot returns a Metrics map across every endpoint that has been
// referenced so far.
func (r *Registry) Snapshot() map[string]Metrics {
	r.mu.Lock()
	breakers := make(map[string]*Breaker, len(r.breakers))
	for k, v := range r.breakers {
		breakers[k] = v
	}
	r.mu.Unlock()

	out := make(map[string]Metrics, len(breakers))
	for name, b := range breakers {
		out[name] = b.Metrics()
	}
	return out
}
