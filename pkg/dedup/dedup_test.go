package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicator_FirstSightingIsNotDuplicate(t *testing.T) {
	d := New(60*time.Second, 100)
	now := time.Now()

	assert.False(t, d.Check("fp-1", now))
	assert.Equal(t, 1, d.Len())
}

func TestDeduplicator_RepeatWithinWindowIsDuplicate(t *testing.T) {
	d := New(60*time.Second, 100)
	now := time.Now()

	require_ := assert.New(t)
	require_.False(d.Check("fp-1", now))
	require_.True(d.Check("fp-1", now.Add(30*time.Second)))
	require_.True(d.Check("fp-1", now.Add(59*time.Second)))
	assert.Equal(t, 3, d.RepeatCount("fp-1"))
}

func TestDeduplicator_RepeatAfterWindowIsNotDuplicate(t *testing.T) {
	d := New(60*time.Second, 100)
	now := time.Now()

	assert.False(t, d.Check("fp-1", now))
	assert.False(t, d.Check("fp-1", now.Add(61*time.Second)))
	assert.Equal(t, 1, d.RepeatCount("fp-1"))
}

func TestDeduplicator_BoundedCapacityEvictsOldestFirst(t *testing.T) {
	d := New(time.Hour, 2)
	now := time.Now()

	assert.False(t, d.Check("fp-1", now))
	assert.False(t, d.Check("fp-2", now.Add(time.Second)))
	assert.Equal(t, 2, d.Len())

	// fp-3 forces eviction of fp-1 (oldest, least recently touched).
	assert.False(t, d.Check("fp-3", now.Add(2*time.Second)))
	assert.Equal(t, 2, d.Len())

	// fp-1 was evicted, so it's treated as a fresh sighting again.
	assert.False(t, d.Check("fp-1", now.Add(3*time.Second)))
}

func TestDeduplicator_DistinctFingerprintsDoNotCollide(t *testing.T) {
	d := New(60*time.Second, 100)
	now := time.Now()

	assert.False(t, d.Check("fp-a", now))
	assert.False(t, d.Check("fp-b", now))
	assert.Equal(t, 2, d.Len())
}

func TestDeduplicator_RepeatCountOfUnseenFingerprintIsZero(t *testing.T) {
	d := New(60*time.Second, 100)
	assert.Equal(t, 0, d.RepeatCount("never-seen"))
}
