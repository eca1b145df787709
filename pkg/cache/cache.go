package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is a cached response plus the accounting spec.md §4.2 requires
// for cost estimation.
type Entry struct {
	Response      string    `json:"response"`
	TokenEstimate int       `json:"tokenEstimate"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Stats summarizes a Cache's current state (spec.md §4.2 "stats()").
type Stats struct {
	Size      int
	Connected bool
	HitRate   float64
}

// indexEntry tracks one prompt's embedding for approximate matching,
// independent of the backing Store (which is keyed by exact hash only
// and may not support iteration, e.g. Redis).
type indexEntry struct {
	hash      string
	embedding Embedding
	expiresAt time.Time
}

// Cache is the SimilarityCache of spec.md §4.2.
type Cache struct {
	store               Store
	similarityThreshold float64
	ttl                 time.Duration
	maxIndexEntries     int

	mu       sync.Mutex
	order    *list.List // front = most recently used, back = least
	byHash   map[string]*list.Element

	hits   atomic.Int64
	misses atomic.Int64

	// inflight collapses concurrent Resolve calls for the same prompt
	// into a single compute, so a burst of workers investigating the
	// same recurring alert doesn't stampede the reasoning service on a
	// shared cache miss (spec.md §4.2).
	inflight singleflight.Group
}

// Options configures a Cache.
type Options struct {
	Store               Store
	SimilarityThreshold float64
	TTL                 time.Duration
	MaxEntries          int
}

// New creates a Cache. A nil Store defaults to an in-process memory store.
func New(opts Options) *Cache {
	store := opts.Store
	if store == nil {
		store = newMemoryStore()
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Cache{
		store:               store,
		similarityThreshold: opts.SimilarityThreshold,
		ttl:                 opts.TTL,
		maxIndexEntries:      maxEntries,
		order:                list.New(),
		byHash:               make(map[string]*list.Element),
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizePrompt(prompt string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(strings.ToLower(prompt)), " ")
}

func exactHash(prompt string) string {
	sum := sha256.Sum256([]byte(normalizePrompt(prompt)))
	return hex.EncodeToString(sum[:])
}

// Get looks up prompt: first by exact hash, then by approximate cosine
// similarity over the index of previously-set prompts. Returns (nil,
// false) on any miss or backing-store failure — a miss is never an error
// to the caller (spec.md §4.2).
func (c *Cache) Get(ctx context.Context, prompt string, tokens int) (*Entry, bool) {
	hash := exactHash(prompt)

	if entry, ok := c.fetch(ctx, hash); ok {
		c.hits.Add(1)
		return entry, true
	}

	if candidate, ok := c.bestApproximateMatch(prompt); ok {
		if entry, ok := c.fetch(ctx, candidate); ok {
			c.hits.Add(1)
			return entry, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

func (c *Cache) fetch(ctx context.Context, hash string) (*Entry, bool) {
	raw, ok, err := c.store.Get(ctx, hash)
	if err != nil || !ok {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return &entry, true
}

func (c *Cache) bestApproximateMatch(prompt string) (string, bool) {
	emb := embed(prompt)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var best *indexEntry
	var bestScore float64
	for el := c.order.Front(); el != nil; el = el.Next() {
		ix := el.Value.(*indexEntry)
		if now.After(ix.expiresAt) {
			continue
		}
		score := cosineSimilarity(emb, ix.embedding)
		if score >= c.similarityThreshold && (best == nil || score > bestScore) {
			best, bestScore = ix, score
		}
	}
	if best == nil {
		return "", false
	}
	return best.hash, true
}

// Set stores response for prompt. Writes are best-effort: a backing
// store failure is swallowed, never surfaced to the caller (spec.md §4.2).
func (c *Cache) Set(ctx context.Context, prompt, response string, tokens int) {
	hash := exactHash(prompt)
	entry := Entry{
		Response:      response,
		TokenEstimate: tokens,
		ExpiresAt:     time.Now().Add(c.ttl),
	}
	data, err := json.Marshal(entry)
	if err == nil {
		_ = c.store.Set(ctx, hash, string(data), c.ttl)
	}
	c.indexFor(hash, prompt)
}

func (c *Cache) indexFor(hash, prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byHash[hash]; ok {
		ix := el.Value.(*indexEntry)
		ix.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	for len(c.byHash) >= c.maxIndexEntries {
		back := c.order.Back()
		if back == nil {
			break
		}
		ix := back.Value.(*indexEntry)
		delete(c.byHash, ix.hash)
		c.order.Remove(back)
	}

	ix := &indexEntry{hash: hash, embedding: embed(prompt), expiresAt: time.Now().Add(c.ttl)}
	el := c.order.PushFront(ix)
	c.byHash[hash] = el
}

// Resolve is Get, falling back to a singleflight-guarded compute on a
// miss: concurrent callers asking for the same prompt share one
// in-flight compute instead of each calling it independently (spec.md
// §4.2's similarity cache exists precisely to avoid redundant reasoning
// calls; a naive Get-then-Set leaves that redundant for calls that race
// each other inside the same miss window). compute returns the
// generated response, its token estimate, and whether it is cacheable —
// the caller decides cacheability (e.g. a response carrying tool calls
// must not be replayed from cache).
func (c *Cache) Resolve(ctx context.Context, prompt string, compute func() (response string, tokens int, cacheable bool, err error)) (string, error) {
	hash := exactHash(prompt)

	if entry, ok := c.fetch(ctx, hash); ok {
		c.hits.Add(1)
		return entry.Response, nil
	}
	if candidate, ok := c.bestApproximateMatch(prompt); ok {
		if entry, ok := c.fetch(ctx, candidate); ok {
			c.hits.Add(1)
			return entry.Response, nil
		}
	}
	c.misses.Add(1)

	v, err, _ := c.inflight.Do(hash, func() (any, error) {
		response, tokens, cacheable, err := compute()
		if err != nil {
			return "", err
		}
		if cacheable {
			c.Set(ctx, prompt, response, tokens)
		}
		return response, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Cleanup purges expired entries from the approximate-match index. The
// backing Store expires its own entries lazily (memoryStore) or natively
// (Redis TTL), per spec.md §4.2's cleanup() operation.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		ix := el.Value.(*indexEntry)
		if now.After(ix.expiresAt) {
			delete(c.byHash, ix.hash)
			c.order.Remove(el)
			removed++
		}
		el = next
	}
	return removed
}

// Stats returns a point-in-time snapshot of cache health.
func (c *Cache) Stats(ctx context.Context) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Size:      c.store.Len(ctx),
		Connected: c.store.Connected(),
		HitRate:   hitRate,
	}
}
