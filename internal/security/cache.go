package security

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// objectCache is the only shared mutable state in the engine. It is an
// optimization, never required for correctness: a cache-disabled
// configuration produces byte-identical results, only slower.
var objectCache = newResultCache()

// cacheEntry pairs a stored result with its insertion time. Hit counts are
// kept for observability; eviction is least-recently-inserted, not LRU, so
// hits do not refresh an entry's position.
type cacheEntry struct {
	result     ObjectResult
	insertedAt time.Time
	hitCount   int
}

// resultCache is a TTL-and-size bounded cache keyed by a content hash of
// (value, path). A single mutex guards it; every operation inside the lock
// is O(1) or one eviction scan, so contention stays low.
type resultCache struct {
	mu      sync.Mutex
	entries map[uint64]*cacheEntry
	order   []uint64 // insertion order, oldest first
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[uint64]*cacheEntry)}
}

// cacheKey derives a content hash of (value, path, limits). The limits are
// part of the key because the same value sanitized under a different level
// or cap legitimately produces a different result. Values that cannot be
// serialized deterministically (cycles, callables, channels) are not
// cacheable; the sanitizer simply recomputes for those.
func cacheKey(value any, path string, cfg *ObjectConfig) (uint64, bool) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, false
	}
	d := xxhash.New()
	_, _ = d.WriteString(path)
	_, _ = d.Write([]byte{0})
	_, _ = fmt.Fprintf(d, "%d|%d|%d|%d|%d|%d|%d",
		cfg.Level, cfg.MaxDepth, cfg.MaxProperties, cfg.MaxSequenceLength,
		cfg.MaxStringLength, cfg.MaxBytes, len(cfg.RedactPatterns))
	for _, re := range cfg.RedactPatterns {
		_, _ = d.WriteString(re.String())
	}
	classes := make([]int, 0, len(cfg.Overrides))
	for class := range cfg.Overrides {
		classes = append(classes, int(class))
	}
	sort.Ints(classes)
	for _, class := range classes {
		_, _ = fmt.Fprintf(d, "|%d=%d", class, cfg.Overrides[Classification(class)])
	}
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(data)
	return d.Sum64(), true
}

// copyValue deep-copies a sanitized tree. Only the container types the
// sanitizer emits need copying; every leaf it produces is an immutable value.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// copyResult detaches a result from the cache entry it came from or goes
// into, so no caller ever aliases stored state.
func copyResult(r ObjectResult) ObjectResult {
	r.Sanitized = copyValue(r.Sanitized)
	r.Violations = append([]Violation(nil), r.Violations...)
	r.Warnings = append([]string(nil), r.Warnings...)
	return r
}

// get returns a copy of a stored result. Entries older than the configured
// TTL are treated as absent and removed.
func (c *resultCache) get(key uint64, cfg *ObjectConfig) (ObjectResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return ObjectResult{}, false
	}
	if time.Since(entry.insertedAt) > cfg.CacheTTL {
		delete(c.entries, key)
		return ObjectResult{}, false
	}
	entry.hitCount++
	return copyResult(entry.result), true
}

// put stores a copy of a result, evicting the oldest insertions once the
// size cap is reached.
func (c *resultCache) put(key uint64, result ObjectResult, cfg *ObjectConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{result: copyResult(result), insertedAt: time.Now()}

	for len(c.entries) > cfg.CacheMaxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// reset drops every entry.
func (c *resultCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*cacheEntry)
	c.order = nil
}

// len reports the current entry count.
func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ResetCache clears the sanitizer's result cache. Tests call this for
// deterministic runs; production callers may use it after bulk operations.
func ResetCache() {
	objectCache.reset()
}
