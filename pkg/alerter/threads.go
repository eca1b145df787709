package alerter

import "sync"

// threadCache remembers a Slack thread timestamp between Fire and Enrich
// for a given incident ID. Small and short-lived: entries are removed by
// Enrich once consumed, so this never grows unbounded under normal
// operation (an incident that never reaches Enrich leaks one entry, which
// is acceptable for a process-lifetime map).
type threadCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newThreadCache() *threadCache {
	return &threadCache{m: make(map[string]string)}
}

func (c *threadCache) put(id, threadTS string) {
	if threadTS == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = threadTS
}

func (c *threadCache) get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.m[id]
	return ts, ok
}

func (c *threadCache) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
}
