package priority

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlert(id string, class Class, score float64, enqueuedAt time.Time) *Alert {
	return &Alert{
		ID:            id,
		Log:           "log for " + id,
		PriorityClass: class,
		PriorityScore: score,
		EnqueuedAt:    enqueuedAt,
	}
}

func TestQueue_DequeueOrdersByClassThenScoreThenFIFO(t *testing.T) {
	q := NewQueue(10)
	base := time.Now()

	require.NoError(t, q.Enqueue(newAlert("medium-1", Medium, 0.4, base)))
	require.NoError(t, q.Enqueue(newAlert("critical-1", Critical, 0.9, base.Add(time.Second))))
	require.NoError(t, q.Enqueue(newAlert("critical-2-older", Critical, 0.9, base)))
	require.NoError(t, q.Enqueue(newAlert("high-1", High, 0.5, base)))

	var order []string
	for q.Len() > 0 {
		a, ok := q.Dequeue()
		require.True(t, ok)
		order = append(order, a.ID)
	}

	assert.Equal(t, []string{"critical-2-older", "critical-1", "high-1", "medium-1"}, order)
}

func TestQueue_OverflowEvictsWorstWhenIncomingOutranks(t *testing.T) {
	q := NewQueue(2)
	base := time.Now()

	require.NoError(t, q.Enqueue(newAlert("m1", Medium, 0.4, base)))
	require.NoError(t, q.Enqueue(newAlert("m2", Medium, 0.4, base.Add(time.Second)))) // queue full now

	err := q.Enqueue(newAlert("m3", Medium, 0.4, base.Add(2*time.Second)))
	assert.ErrorIs(t, err, ErrQueueFull)

	// A CRITICAL alert outranks the worst MEDIUM and evicts it.
	require.NoError(t, q.Enqueue(newAlert("c1", Critical, 0.95, base.Add(3*time.Second))))
	assert.Equal(t, 2, q.Len())

	a, _ := q.Dequeue()
	assert.Equal(t, "c1", a.ID)
}

func TestQueue_RemoveByID(t *testing.T) {
	q := NewQueue(10)
	base := time.Now()
	require.NoError(t, q.Enqueue(newAlert("a", Medium, 0.4, base)))
	require.NoError(t, q.Enqueue(newAlert("b", High, 0.6, base)))
	require.NoError(t, q.Enqueue(newAlert("c", Low, 0.1, base)))

	removed, ok := q.RemoveByID("b")
	require.True(t, ok)
	assert.Equal(t, "b", removed.ID)
	assert.Equal(t, 2, q.Len())

	_, ok = q.RemoveByID("nonexistent")
	assert.False(t, ok)

	assertHeapValid(t, q)
}

func TestQueue_UpdatePriority(t *testing.T) {
	q := NewQueue(10)
	base := time.Now()
	require.NoError(t, q.Enqueue(newAlert("a", Low, 0.1, base)))
	require.NoError(t, q.Enqueue(newAlert("b", Medium, 0.4, base)))

	ok := q.UpdatePriority("a", Critical, 0.95)
	require.True(t, ok)

	top, _ := q.Peek()
	assert.Equal(t, "a", top.ID)

	assert.False(t, q.UpdatePriority("missing", Critical, 1.0))
}

func TestQueue_AgingIsMonotonicAndTriggersReheap(t *testing.T) {
	q := NewQueue(10)
	base := time.Now()

	require.NoError(t, q.Enqueue(newAlert("low", Low, 0.2, base)))
	require.NoError(t, q.Enqueue(newAlert("medium", Medium, 0.5, base)))

	scoreBefore := q.index["low"].PriorityScore

	// 10 minutes later: boost = 0.1 * 10 = 1.0, well over the tolerance,
	// so "low" should now outscore "medium" even though its class is worse...
	// but class still dominates the comparator, so it should NOT jump ahead
	// of medium (class Low > Medium). This only checks monotonic score growth.
	later := base.Add(10 * time.Minute)
	boosted := q.AgePriorities(later)
	assert.Greater(t, boosted, 0)

	scoreAfter := q.index["low"].PriorityScore
	assert.GreaterOrEqual(t, scoreAfter, scoreBefore)
	assert.InDelta(t, 0.2+1.0, scoreAfter, 1e-9)

	// Aging again at the same instant must not decrease anything.
	scoreAfter2 := q.index["low"].PriorityScore
	q.AgePriorities(later)
	assert.GreaterOrEqual(t, q.index["low"].PriorityScore, scoreAfter2)

	assertHeapValid(t, q)
}

func TestQueue_AgingEventuallyDispatchesStarvedLow(t *testing.T) {
	// Scenario 4 (spec.md §8): a LOW alert (score 0.2) with no competing
	// traffic; at t=10min its score is >= 0.2 + 10*0.1 = 1.2.
	q := NewQueue(10)
	base := time.Now()
	require.NoError(t, q.Enqueue(newAlert("low", Low, 0.2, base)))

	q.AgePriorities(base.Add(10 * time.Minute))
	a, _ := q.Peek()
	assert.GreaterOrEqual(t, a.PriorityScore, 1.2)
}

// assertHeapValid checks the heap property holds: every parent ranks at
// least as high as (i.e. is Less-or-equal to) its children, per spec.md's
// P3 testable property.
func assertHeapValid(t *testing.T, q *Queue) {
	t.Helper()
	h := q.h
	for i := range h {
		left, right := 2*i+1, 2*i+2
		if left < len(h) {
			assert.False(t, less(h[left], h[i]), "heap property violated at parent %d, left child %d", i, left)
		}
		if right < len(h) {
			assert.False(t, less(h[right], h[i]), "heap property violated at parent %d, right child %d", i, right)
		}
	}
}

// TestQueue_RandomOpSequencePreservesHeapProperty is spec.md's P3: a
// random-op sequence of length >= 1000 must leave the heap property intact
// after every mutation.
func TestQueue_RandomOpSequencePreservesHeapProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	q := NewQueue(1000000)
	base := time.Now()
	live := make([]string, 0, 1100)
	classes := []Class{Critical, High, Medium, Low}

	for i := 0; i < 1200; i++ {
		op := rng.Intn(4)
		switch {
		case op == 0 || len(live) == 0:
			id := fmt.Sprintf("alert-%d", i)
			a := newAlert(id, classes[rng.Intn(len(classes))], rng.Float64(), base.Add(time.Duration(i)*time.Millisecond))
			require.NoError(t, q.Enqueue(a))
			live = append(live, id)
		case op == 1:
			_, ok := q.Dequeue()
			if ok && len(live) > 0 {
				live = live[:len(live)-1]
			}
		case op == 2:
			idx := rng.Intn(len(live))
			id := live[idx]
			q.RemoveByID(id)
			live = append(live[:idx], live[idx+1:]...)
		case op == 3:
			idx := rng.Intn(len(live))
			id := live[idx]
			q.UpdatePriority(id, classes[rng.Intn(len(classes))], rng.Float64())
		}
		assertHeapValid(t, q)
	}
}
