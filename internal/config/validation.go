package config

import (
	"fmt"
	"regexp"
	"slices"
	"time"
)

var validLevels = []string{"minimal", "standard", "strict", "paranoid"}
var validRedactionLevels = []string{"none", "partial", "full"}

// Validate checks configuration values. Returns sentinel errors usable with
// errors.Is(). Validate never mutates the config; normalization of bad
// values is the engine's job, on its own copies.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if !slices.Contains(validLevels, c.Level) {
		return fmt.Errorf("%w: %q, must be one of %v", ErrInvalidLevel, c.Level, validLevels)
	}
	if !slices.Contains(validRedactionLevels, c.RedactionLevel) {
		return fmt.Errorf("%w: %q, must be one of %v", ErrInvalidRedaction, c.RedactionLevel, validRedactionLevels)
	}

	if c.MaxDepth < 1 || c.MaxDepth > MaxAllowedDepth {
		return fmt.Errorf("%w: max_depth must be 1-%d, got %d", ErrInvalidLimit, MaxAllowedDepth, c.MaxDepth)
	}
	if c.MaxProperties < 1 || c.MaxProperties > MaxAllowedProperties {
		return fmt.Errorf("%w: max_properties must be 1-%d, got %d", ErrInvalidLimit, MaxAllowedProperties, c.MaxProperties)
	}
	if c.MaxStringLength < 16 {
		return fmt.Errorf("%w: max_string_length must be at least 16, got %d", ErrInvalidLimit, c.MaxStringLength)
	}
	if c.CacheMaxEntries < 1 || c.CacheMaxEntries > MaxAllowedCacheEntries {
		return fmt.Errorf("%w: cache_max_entries must be 1-%d, got %d", ErrInvalidLimit, MaxAllowedCacheEntries, c.CacheMaxEntries)
	}
	if c.CacheTTLSeconds < 1 {
		return fmt.Errorf("%w: cache_ttl_seconds must be positive, got %d", ErrInvalidLimit, c.CacheTTLSeconds)
	}
	if c.MaxProcessingMs < 10 {
		return fmt.Errorf("%w: max_processing_ms must be at least 10, got %d", ErrInvalidLimit, c.MaxProcessingMs)
	}

	for _, pattern := range c.RedactPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
		}
	}
	return nil
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// MaxProcessingTime returns the per-call wall-clock budget as a duration.
func (c *Config) MaxProcessingTime() time.Duration {
	return time.Duration(c.MaxProcessingMs) * time.Millisecond
}

// CompiledRedactPatterns compiles the custom redaction patterns. Validate
// has already checked them, so compilation cannot fail afterwards.
func (c *Config) CompiledRedactPatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(c.RedactPatterns))
	for _, p := range c.RedactPatterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
