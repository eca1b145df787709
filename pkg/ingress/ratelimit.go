package ingress

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterEntry is one client's token bucket plus its last-seen time, used
// by cleanupLoop to evict clients that have gone idle.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter is a per-client token-bucket admission gate (spec.md §4.10:
// "Per-client token-bucket rate limiter (default 100 req / 60 s)"),
// grounded on rcourtman-Pulse/cmd/pulse-sensor-proxy/throttle.go's
// per-peer limiter map, simplified to drop that source's concurrency
// semaphores — spec.md names only the request-rate lever, not a
// concurrency cap.
type rateLimiter struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idleAfter time.Duration
	quitCh   chan struct{}
}

const (
	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = 60 * time.Second
	rateLimiterIdleAfter     = 10 * time.Minute
	rateLimiterSweep         = 5 * time.Minute
)

// newRateLimiter builds a limiter admitting reqs requests per window, per
// client key, with a burst equal to reqs. A non-positive reqs or window
// falls back to the spec default of 100 req / 60 s.
func newRateLimiter(reqs int, window time.Duration) *rateLimiter {
	if reqs <= 0 {
		reqs = defaultRateLimitRequests
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	rl := &rateLimiter{
		entries:   make(map[string]*limiterEntry),
		limit:     rate.Limit(float64(reqs) / window.Seconds()),
		burst:     reqs,
		idleAfter: rateLimiterIdleAfter,
		quitCh:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// allow reports whether clientKey may proceed, consuming one token if so.
func (rl *rateLimiter) allow(clientKey string) bool {
	rl.mu.Lock()
	entry := rl.entries[clientKey]
	if entry == nil {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[clientKey] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// cleanupLoop periodically evicts clients idle past idleAfter, bounding
// the entries map's growth under a changing client population.
func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rateLimiterSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, entry := range rl.entries {
				if time.Since(entry.lastSeen) > rl.idleAfter {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.quitCh:
			return
		}
	}
}

// shutdown stops the cleanup loop.
func (rl *rateLimiter) shutdown() {
	close(rl.quitCh)
}
