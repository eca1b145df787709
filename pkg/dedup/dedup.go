// Package dedup implements Seraph's Deduplicator (C5): a sliding window of
// seen alert fingerprints that suppresses repeated alerts within a time
// window, per spec.md §4.5.
package dedup

import (
	"container/list"
	"sync"
	"time"
)

// entry is the bookkeeping kept per fingerprint, linked into an eviction
// list ordered by insertion so the oldest entry is always at the back.
type entry struct {
	fingerprint string
	firstSeenAt time.Time
	count       int
}

// Deduplicator suppresses repeated alerts sharing a fingerprint within
// window. Storage is bounded by maxEntries; eviction is oldest-first.
// Safe for concurrent use.
type Deduplicator struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	byID       map[string]*list.Element // fingerprint -> element holding *entry
	order      *list.List               // front = newest, back = oldest
}

// New creates a Deduplicator with the given sliding window and a bound on
// how many distinct fingerprints it tracks at once.
func New(window time.Duration, maxEntries int) *Deduplicator {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Deduplicator{
		window:     window,
		maxEntries: maxEntries,
		byID:       make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Check reports whether fingerprint was already seen within window of now.
// If it was not (or its prior sighting has aged out of the window), it is
// recorded as seen now and Check returns false — the caller should proceed
// to schedule an investigation. If it was, Check returns true and bumps an
// internal repeat counter — the caller should count the metric increment
// and NOT schedule anything (spec.md §4.5).
func (d *Deduplicator) Check(fingerprint string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.byID[fingerprint]; ok {
		e := el.Value.(*entry)
		if now.Sub(e.firstSeenAt) < d.window {
			e.count++
			d.order.MoveToFront(el)
			return true
		}
		// Window expired: refresh as a new sighting.
		e.firstSeenAt = now
		e.count = 1
		d.order.MoveToFront(el)
		return false
	}

	d.evictIfFull()
	e := &entry{fingerprint: fingerprint, firstSeenAt: now, count: 1}
	el := d.order.PushFront(e)
	d.byID[fingerprint] = el
	return false
}

func (d *Deduplicator) evictIfFull() {
	for len(d.byID) >= d.maxEntries {
		back := d.order.Back()
		if back == nil {
			return
		}
		e := back.Value.(*entry)
		delete(d.byID, e.fingerprint)
		d.order.Remove(back)
	}
}

// Len returns the number of distinct fingerprints currently tracked.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byID)
}

// RepeatCount returns how many times fingerprint has been seen within its
// current window (1 means seen once, not yet a repeat).
func (d *Deduplicator) RepeatCount(fingerprint string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.byID[fingerprint]; ok {
		return el.Value.(*entry).count
	}
	return 0
}
