// Package cache implements Seraph's SimilarityCache (C2): a two-level
// prompt→response cache (exact hash, then approximate cosine match over a
// deterministic embedding) with TTL expiry and a pluggable backing store,
// per spec.md §4.2.
package cache

import (
	"context"
	"time"
)

// Store is the pluggable backing store for raw cache payloads, keyed by
// exact-hash. Implementations: memoryStore (default, in-process) and
// RedisStore (shared across processes). Store.Get returning (false, nil)
// on any failure — rather than propagating the error — is deliberate:
// spec.md §4.2 requires that "cache misses must never fail the calling
// operation."
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Len(ctx context.Context) int
	Connected() bool
}
