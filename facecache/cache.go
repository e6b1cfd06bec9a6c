// Package facecache memoizes generated character images for one pipeline
// run, keyed by (character name, seed). Check-then-populate is atomic per
// key: concurrent workers asking for the same character share a single
// generation call instead of racing to produce two different images for
// one logical character.
package facecache

import (
	"sync"

	"vidgen-pipeline/types"
)

// Key identifies one character's image within a run.
type Key struct {
	Name string
	Seed uint32
}

type call struct {
	done   chan struct{}
	result types.Artifact
}

// Cache is run-scoped shared state; construct one per run and pass it in
// rather than holding a process-wide instance.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]types.Artifact
	inflight map[Key]*call
}

func New() *Cache {
	return &Cache{
		entries:  make(map[Key]types.Artifact),
		inflight: make(map[Key]*call),
	}
}

// GetOrGenerate returns the cached image for the key, or runs generate
// exactly once across all concurrent callers and shares the result.
// Only real artifacts are stored: a fallback result is handed to everyone
// waiting on this call but does not poison the cache for later segments.
// The second return value reports whether the result came from the cache.
func (c *Cache) GetOrGenerate(name string, seed uint32, generate func() types.Artifact) (types.Artifact, bool) {
	key := Key{Name: name, Seed: seed}

	c.mu.Lock()
	if a, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return a, true
	}
	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-cl.done
		return cl.result, true
	}
	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()

	cl.result = generate()

	c.mu.Lock()
	if cl.result.Status == types.ArtifactReal {
		c.entries[key] = cl.result
	}
	delete(c.inflight, key)
	c.mu.Unlock()
	close(cl.done)

	return cl.result, false
}

// Lookup returns the cached image for a key without generating.
func (c *Cache) Lookup(name string, seed uint32) (types.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[Key{Name: name, Seed: seed}]
	return a, ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
