package priority

import (
	"container/heap"
	"errors"
	"time"
)

// ErrQueueFull is returned by Enqueue when the queue is at maxSize and the
// incoming alert does not outrank the current lowest-ranked entry.
var ErrQueueFull = errors.New("priority queue full")

// scoreTolerance is the comparator's float-equality tolerance for
// priorityScore (spec.md §4.3, comparator rule 2).
const scoreTolerance = 0.01

// agingRate is applied per waiting minute (spec.md §4.3: "0.1 × waitingMinutes").
const agingRate = 0.1

// innerHeap is the container/heap.Interface implementation. Exported Queue
// wraps it with a side index for O(log n) RemoveByID/UpdatePriority, per
// spec.md §4.3. Not safe for concurrent use — per the Scheduler's single-
// owner design (spec.md §9 "Shared mutable state"), all mutation happens
// from one goroutine.
type innerHeap []*Alert

func (h innerHeap) Len() int { return len(h) }

func (h innerHeap) Less(i, j int) bool {
	return less(h[i], h[j])
}

// less implements the three-tier comparator of spec.md §4.3:
// 1. lower priorityClass first
// 2. higher priorityScore first (tolerance 0.01)
// 3. older enqueuedAt first (FIFO tiebreak)
func less(a, b *Alert) bool {
	if a.PriorityClass != b.PriorityClass {
		return a.PriorityClass < b.PriorityClass
	}
	diff := a.PriorityScore - b.PriorityScore
	if diff > scoreTolerance || diff < -scoreTolerance {
		return a.PriorityScore > b.PriorityScore
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt)
}

func (h innerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *innerHeap) Push(x any) {
	a := x.(*Alert)
	a.heapIndex = len(*h)
	*h = append(*h, a)
}

func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.heapIndex = -1
	*h = old[:n-1]
	return a
}

// Queue is the in-memory min-heap PriorityQueue of spec.md §4.3.
type Queue struct {
	h       innerHeap
	index   map[string]*Alert // alertID -> alert, kept in sync with h for O(1) lookup
	maxSize int
}

// NewQueue creates an empty queue bounded at maxSize entries.
func NewQueue(maxSize int) *Queue {
	return &Queue{
		h:       make(innerHeap, 0),
		index:   make(map[string]*Alert),
		maxSize: maxSize,
	}
}

// Len returns the number of alerts currently queued.
func (q *Queue) Len() int { return len(q.h) }

// Enqueue adds an alert, evicting the lowest-ranked current entry if the
// queue is at maxSize and the incoming alert outranks it (spec.md §4.3
// overflow rule). Returns ErrQueueFull if the incoming alert does not
// outrank the worst entry.
func (q *Queue) Enqueue(a *Alert) error {
	if _, exists := q.index[a.ID]; exists {
		return errors.New("priority queue: duplicate alert id")
	}

	if len(q.h) >= q.maxSize && q.maxSize > 0 {
		worst := q.worst()
		if worst == nil || !less(a, worst) {
			return ErrQueueFull
		}
		q.removeAt(worst.heapIndex)
		delete(q.index, worst.ID)
	}

	heap.Push(&q.h, a)
	q.index[a.ID] = a
	return nil
}

// worst returns the lowest-ranked entry currently in the queue (the one
// Less would place last), used for overflow eviction decisions.
func (q *Queue) worst() *Alert {
	if len(q.h) == 0 {
		return nil
	}
	worst := q.h[0]
	for _, a := range q.h[1:] {
		if less(worst, a) {
			worst = a
		}
	}
	return worst
}

// Dequeue pops the highest-ranked alert.
func (q *Queue) Dequeue() (*Alert, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	a := heap.Pop(&q.h).(*Alert)
	delete(q.index, a.ID)
	return a, true
}

// Peek returns the highest-ranked alert without removing it.
func (q *Queue) Peek() (*Alert, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	return q.h[0], true
}

// RemoveByID removes and returns the alert with the given id, if present.
func (q *Queue) RemoveByID(id string) (*Alert, bool) {
	a, ok := q.index[id]
	if !ok {
		return nil, false
	}
	q.removeAt(a.heapIndex)
	delete(q.index, id)
	return a, true
}

func (q *Queue) removeAt(i int) {
	heap.Remove(&q.h, i)
}

// UpdatePriority changes an alert's class/score and restores heap order.
// Returns false if the alert isn't queued.
func (q *Queue) UpdatePriority(id string, class Class, score float64) bool {
	a, ok := q.index[id]
	if !ok {
		return false
	}
	a.PriorityClass = class
	a.PriorityScore = score
	a.agingBase = score
	a.agingBaseSet = true
	heap.Fix(&q.h, a.heapIndex)
	return true
}

// AgePriorities raises every queued alert's priorityScore by
// 0.1 × waitingMinutes (spec.md §4.3 "Aging"), relative to now. Aging is
// monotonic: scores only increase, never decrease, matching spec.md's
// invariant. Reheapifies once at the end if any score actually increased,
// rather than per-entry, to keep a single O(n log n) pass (Fix is O(log n)
// per call — a single heap.Init after mutating all scores in place is
// cheaper than n individual Fixes for a full-queue age sweep).
func (q *Queue) AgePriorities(now time.Time) int {
	boosted := 0
	for _, a := range q.h {
		waitingMinutes := now.Sub(a.EnqueuedAt).Minutes()
		if waitingMinutes <= 0 {
			continue
		}
		boost := agingRate * waitingMinutes
		// Re-derive rather than accumulate: boost is a function of total
		// wait time, so recomputing from EnqueuedAt each tick is itself
		// idempotent and trivially monotonic as waitingMinutes grows.
		target := a.baseScoreBeforeAging() + boost
		if target > a.PriorityScore {
			a.PriorityScore = target
			boosted++
		}
	}
	if boosted > 0 {
		heap.Init(&q.h)
	}
	return boosted
}

// baseScoreBeforeAging is tracked implicitly: Alert doesn't persist a
// separate "base" field in spec.md's data model, so AgePriorities treats
// the alert's PriorityScore at enqueue time as the base once aging has
// never run. Alerts carry their own aging state via PriorityScore directly;
// this helper exists so AgePriorities can be called idempotently from a
// ticker without double-applying boosts across ticks (see agingBase field).
func (a *Alert) baseScoreBeforeAging() float64 {
	if a.agingBaseSet {
		return a.agingBase
	}
	a.agingBase = a.PriorityScore
	a.agingBaseSet = true
	return a.agingBase
}

// Metrics summarizes the queue's current state (spec.md §4.3 "Exposes metrics").
type Metrics struct {
	TotalQueued      int
	ByPriority       map[Class]int
	AvgWaitTime      time.Duration
	AvgPriorityScore float64
	OldestEnqueuedAt time.Time
}

// Metrics computes a snapshot of the queue's current state.
func (q *Queue) Metrics(now time.Time) Metrics {
	m := Metrics{
		ByPriority: map[Class]int{Critical: 0, High: 0, Medium: 0, Low: 0},
	}
	if len(q.h) == 0 {
		return m
	}

	var totalWait time.Duration
	var totalScore float64
	oldest := now
	for _, a := range q.h {
		m.ByPriority[a.PriorityClass]++
		totalWait += now.Sub(a.EnqueuedAt)
		totalScore += a.PriorityScore
		if a.EnqueuedAt.Before(oldest) {
			oldest = a.EnqueuedAt
		}
	}
	m.TotalQueued = len(q.h)
	m.AvgWaitTime = totalWait / time.Duration(len(q.h))
	m.AvgPriorityScore = totalScore / float64(len(q.h))
	m.OldestEnqueuedAt = oldest
	return m
}
