package security

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestCacheHit(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)
	cfg := DefaultObjectConfig()

	in := map[string]any{"note": "password=hunter2"}
	first := SanitizeObject(in, "ctx", cfg)
	if first.Metrics.CacheHit {
		t.Error("first call must miss")
	}
	second := SanitizeObject(in, "ctx", cfg)
	if !second.Metrics.CacheHit {
		t.Error("second call must hit")
	}
	if !reflect.DeepEqual(first.Sanitized, second.Sanitized) {
		t.Errorf("cached result differs:\nfirst:  %#v\nsecond: %#v", first.Sanitized, second.Sanitized)
	}
}

// The level is part of the key: the same value sanitized under different
// levels must not collide.
func TestCacheKeyIncludesLevel(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	in := map[string]any{"blob": []byte("hello")}

	standard := DefaultObjectConfig()
	strict := DefaultObjectConfig()
	strict.Level = LevelStrict

	a := SanitizeObject(in, "", standard)
	b := SanitizeObject(in, "", strict)
	if b.Metrics.CacheHit {
		t.Error("strict lookup hit the standard entry")
	}
	if reflect.DeepEqual(a.Sanitized, b.Sanitized) {
		t.Errorf("levels produced identical output, collision suspected: %#v", a.Sanitized)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	cfg := DefaultObjectConfig()
	cfg.CacheTTL = time.Nanosecond

	in := map[string]any{"a": "b"}
	SanitizeObject(in, "", cfg)
	time.Sleep(time.Millisecond)

	second := SanitizeObject(in, "", cfg)
	if second.Metrics.CacheHit {
		t.Error("expired entry served as a hit")
	}
}

func TestCacheEviction(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	cfg := DefaultObjectConfig()
	cfg.CacheMaxEntries = 2

	for i := 0; i < 5; i++ {
		SanitizeObject(map[string]any{"i": i}, "", cfg)
	}
	if got := objectCache.len(); got != 2 {
		t.Errorf("cache holds %d entries, want 2", got)
	}
}

// Invalid results are recomputed so repeated attacks keep being reported.
func TestCacheSkipsInvalidResults(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	cfg := DefaultObjectConfig()
	in := map[string]any{"__proto__": true}

	SanitizeObject(in, "", cfg)
	second := SanitizeObject(in, "", cfg)
	if second.Metrics.CacheHit {
		t.Error("invalid result must not be cached")
	}
	if second.Valid {
		t.Error("recomputed result lost the violation")
	}
}

func TestCacheSkipsUnserializable(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	cfg := DefaultObjectConfig()
	m := map[string]any{}
	m["self"] = m

	SanitizeObject(m, "", cfg)
	second := SanitizeObject(m, "", cfg)
	if second.Metrics.CacheHit {
		t.Error("cyclic value must not be cacheable")
	}
	if objectCache.len() != 0 {
		t.Errorf("cache holds %d entries, want none", objectCache.len())
	}
}

// A result degraded by the wall-clock budget must not be cached: the key
// excludes the budget, so a later caller with a generous budget would be
// served the truncated output instead of the real value.
func TestCacheSkipsOverBudgetResults(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	in := map[string]any{"a": "hello", "b": "world"}

	tight := DefaultObjectConfig()
	tight.MaxProcessingTime = time.Nanosecond
	first := SanitizeObject(in, "budget", tight)
	if first.Sanitized != truncationMarker {
		t.Fatalf("expected truncation under a 1ns budget, got %#v", first.Sanitized)
	}
	if objectCache.len() != 0 {
		t.Fatal("over-budget result was cached")
	}

	second := SanitizeObject(in, "budget", DefaultObjectConfig())
	if second.Metrics.CacheHit {
		t.Error("second call hit a stale entry")
	}
	got, ok := second.Sanitized.(map[string]any)
	if !ok || got["a"] != "hello" || got["b"] != "world" {
		t.Errorf("second call returned a degraded result: %#v", second.Sanitized)
	}
}

// Cache hits must be isolated from each other: a caller mutating the value
// it received must not change what later hits observe.
func TestCacheHitsAreIsolated(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	cfg := DefaultObjectConfig()
	in := map[string]any{"name": "alice", "items": []any{"a", "b"}}

	SanitizeObject(in, "iso", cfg)

	hit := SanitizeObject(in, "iso", cfg)
	if !hit.Metrics.CacheHit {
		t.Fatal("expected a cache hit")
	}
	m := hit.Sanitized.(map[string]any)
	m["name"] = "mallory"
	m["items"].([]any)[0] = "tampered"

	again := SanitizeObject(in, "iso", cfg)
	if !again.Metrics.CacheHit {
		t.Fatal("mutation evicted the entry")
	}
	got := again.Sanitized.(map[string]any)
	if got["name"] != "alice" {
		t.Errorf("mutation leaked into the cache: name = %v", got["name"])
	}
	if got["items"].([]any)[0] != "a" {
		t.Errorf("mutation leaked into the cache: items = %v", got["items"])
	}
}

func TestCacheDisabledMatchesEnabled(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	in := map[string]any{"note": "contact admin@example.com", "n": 7}

	enabled := DefaultObjectConfig()
	disabled := DefaultObjectConfig()
	disabled.CacheEnabled = false

	a := SanitizeObject(in, "", enabled)
	b := SanitizeObject(in, "", disabled)
	if !reflect.DeepEqual(a.Sanitized, b.Sanitized) {
		t.Errorf("cache changed the result:\nenabled:  %#v\ndisabled: %#v", a.Sanitized, b.Sanitized)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	cfg := DefaultObjectConfig()
	cfg.CacheMaxEntries = 8

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				in := map[string]any{"k": fmt.Sprintf("v-%d", i%16)}
				result := SanitizeObject(in, "", cfg)
				if !result.Valid {
					t.Errorf("goroutine %d: unexpected invalid result", g)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if got := objectCache.len(); got > 8 {
		t.Errorf("cache exceeded its cap under concurrency: %d entries", got)
	}
}
