package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Level:           "standard",
		MaxDepth:        16,
		MaxProperties:   128,
		MaxStringLength: 4096,
		CacheEnabled:    true,
		CacheTTLSeconds: 300,
		CacheMaxEntries: 1024,
		MaxProcessingMs: 2000,
		RedactionLevel:  "partial",
		LogLevel:        "info",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid defaults", func(c *Config) {}, nil},
		{"unknown level", func(c *Config) { c.Level = "extreme" }, ErrInvalidLevel},
		{"unknown redaction", func(c *Config) { c.RedactionLevel = "half" }, ErrInvalidRedaction},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }, ErrInvalidLimit},
		{"excessive depth", func(c *Config) { c.MaxDepth = MaxAllowedDepth + 1 }, ErrInvalidLimit},
		{"zero properties", func(c *Config) { c.MaxProperties = 0 }, ErrInvalidLimit},
		{"excessive properties", func(c *Config) { c.MaxProperties = MaxAllowedProperties + 1 }, ErrInvalidLimit},
		{"tiny string cap", func(c *Config) { c.MaxStringLength = 8 }, ErrInvalidLimit},
		{"zero cache entries", func(c *Config) { c.CacheMaxEntries = 0 }, ErrInvalidLimit},
		{"excessive cache entries", func(c *Config) { c.CacheMaxEntries = MaxAllowedCacheEntries + 1 }, ErrInvalidLimit},
		{"zero ttl", func(c *Config) { c.CacheTTLSeconds = 0 }, ErrInvalidLimit},
		{"tiny processing budget", func(c *Config) { c.MaxProcessingMs = 5 }, ErrInvalidLimit},
		{"broken redact pattern", func(c *Config) { c.RedactPatterns = []string{"["} }, ErrInvalidPattern},
		{"valid redact pattern", func(c *Config) { c.RedactPatterns = []string{`\bACCT-\d+\b`} }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("got %v, want ErrConfigNil", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := validConfig()
	if got := cfg.CacheTTL(); got != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", got)
	}
	if got := cfg.MaxProcessingTime(); got != 2*time.Second {
		t.Errorf("MaxProcessingTime = %v, want 2s", got)
	}
}

func TestCompiledRedactPatterns(t *testing.T) {
	cfg := validConfig()
	cfg.RedactPatterns = []string{`\bACCT-\d+\b`, `\bcase-\d{4}\b`}
	compiled := cfg.CompiledRedactPatterns()
	if len(compiled) != 2 {
		t.Fatalf("got %d patterns, want 2", len(compiled))
	}
	if !compiled[0].MatchString("ref ACCT-12345 here") {
		t.Error("compiled pattern does not match its own syntax")
	}
}
