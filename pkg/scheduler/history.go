package scheduler

import (
	"sync"
	"time"
)

// historyNormalizationCap is the recurrence count, within the lookback
// window, treated as "maximally recurring" (normalized to 1.0) by
// Frequency — spec.md §4.4's `historical` factor input.
const historyNormalizationCap = 10.0

// History tracks how often a fingerprint has recurred within a rolling
// window, feeding PriorityCalculator's HistoryLookup. It has its own lock
// independent of the Scheduler's single-owner task: unlike the priority
// queue and active set, recurrence bookkeeping has no ordering
// relationship with scheduling decisions, so it tolerates concurrent
// access from whichever goroutine calls Dispatch.
type History struct {
	mu     sync.Mutex
	window time.Duration
	events map[string][]time.Time
}

// NewHistory builds a History with the given lookback window (spec.md
// §4.4: "past 24h").
func NewHistory(window time.Duration) *History {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &History{window: window, events: make(map[string][]time.Time)}
}

// Record notes one occurrence of fingerprint at "at".
func (h *History) Record(fingerprint string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[fingerprint] = append(h.prune(fingerprint, at), at)
}

// Frequency returns fingerprint's recurrence, normalized to [0,1], per the
// HistoryLookup contract (pkg/priority.HistoryLookup).
func (h *History) Frequency(fingerprint string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := h.prune(fingerprint, time.Now())
	h.events[fingerprint] = events
	n := float64(len(events))
	if n >= historyNormalizationCap {
		return 1.0
	}
	return n / historyNormalizationCap
}

// prune drops events older than the window relative to "now". Caller must
// hold h.mu.
func (h *History) prune(fingerprint string, now time.Time) []time.Time {
	events := h.events[fingerprint]
	cutoff := now.Add(-h.window)
	kept := events[:0:0]
	for _, e := range events {
		if e.After(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}
