// Package priority implements Seraph's priority-aware queueing: the Alert
// data model, the aging min-heap PriorityQueue (C3), and the PriorityCalculator
// scoring function (C4), per spec.md §§3–4.
package priority

import "time"

// Class is the coarse priority bucket of an Alert (spec.md §3).
type Class int

const (
	Critical Class = 1
	High     Class = 2
	Medium   Class = 3
	Low      Class = 4
)

func (c Class) String() string {
	switch c {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

// Metadata carries the descriptive fields of an Alert's origin.
type Metadata struct {
	Service  string
	Severity string
	Tags     map[string]string
	Source   string
}

// Alert is an admitted log line awaiting or undergoing investigation
// (spec.md §3 "Alert"). Identity is ID; content is Log/Reason/Metadata;
// scheduling fields are mutated only by the Scheduler.
type Alert struct {
	ID                  string
	Log                 string
	Reason              string
	Metadata            Metadata
	PriorityClass       Class
	PriorityScore       float64
	EnqueuedAt          time.Time
	EstimatedDurationMs int64

	// Preemptions counts how many times this alert has been preempted.
	// Once it reaches the configured maxPreemptions it is NonPreemptible.
	Preemptions    int
	NonPreemptible bool

	// heapIndex is maintained by PriorityQueue's heap.Interface methods and
	// the side index; callers never read or set it.
	heapIndex int

	// agingBase/agingBaseSet memoize the pre-aging score the first time
	// AgePriorities observes this alert, so repeated ticks recompute the
	// boost from a fixed base instead of compounding it tick over tick.
	agingBase    float64
	agingBaseSet bool
}

// Fingerprint returns a stable content-hash key used for dedup and similarity
// cache lookups, normalizing whitespace so that minor log-line jitter
// (timestamps embedded mid-line, trailing spaces) doesn't defeat dedup.
func (a *Alert) Fingerprint() string {
	return Fingerprint(a.Log, a.Metadata.Service, a.Metadata.Severity)
}
