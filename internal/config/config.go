// Package config loads the engine's default settings with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables (GUARD_* overrides)
//  2. Config file (~/.guard/config.yaml or ./config.yaml)
//  3. Compiled-in defaults
//
// The loaded Config only seeds defaults: per-call options passed to the
// engine always win, and the engine treats those as untrusted input with its
// own coercion rules. Validation here is fail-fast with sentinel errors so
// callers can branch with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidLevel indicates an unknown sanitization level.
	ErrInvalidLevel = errors.New("invalid sanitization level")

	// ErrInvalidRedaction indicates an unknown redaction level.
	ErrInvalidRedaction = errors.New("invalid redaction level")

	// ErrInvalidLimit indicates a limit is out of its accepted range.
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrInvalidPattern indicates a custom redaction pattern does not compile.
	ErrInvalidPattern = errors.New("invalid redaction pattern")
)

// Limit bounds. MaxDepth above 256 or caches above a million entries only
// weaken the engine's DoS posture, so they are rejected rather than clamped.
const (
	MaxAllowedDepth        = 256
	MaxAllowedProperties   = 100000
	MaxAllowedCacheEntries = 1 << 20
)

// Config holds the engine defaults loaded at startup.
type Config struct {
	// Object sanitizer defaults. Level is one of minimal, standard,
	// strict, paranoid.
	Level           string `mapstructure:"level" json:"level"`
	MaxDepth        int    `mapstructure:"max_depth" json:"max_depth"`
	MaxProperties   int    `mapstructure:"max_properties" json:"max_properties"`
	MaxStringLength int    `mapstructure:"max_string_length" json:"max_string_length"`
	CacheEnabled    bool   `mapstructure:"cache_enabled" json:"cache_enabled"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds"`
	CacheMaxEntries int    `mapstructure:"cache_max_entries" json:"cache_max_entries"`
	MaxProcessingMs int    `mapstructure:"max_processing_ms" json:"max_processing_ms"`

	// Input validator defaults
	Strict bool `mapstructure:"strict" json:"strict"`

	// Error context defaults
	RedactionLevel string `mapstructure:"redaction_level" json:"redaction_level"` // none|partial|full

	// Custom redaction patterns applied to string leaves
	RedactPatterns []string `mapstructure:"redact_patterns" json:"redact_patterns"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// Load reads configuration with env > file > defaults priority.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".guard")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers the compiled-in defaults.
func setDefaults() {
	viper.SetDefault("level", "standard")
	viper.SetDefault("max_depth", 16)
	viper.SetDefault("max_properties", 128)
	viper.SetDefault("max_string_length", 4096)
	viper.SetDefault("cache_enabled", true)
	viper.SetDefault("cache_ttl_seconds", 300)
	viper.SetDefault("cache_max_entries", 1024)
	viper.SetDefault("max_processing_ms", 2000)
	viper.SetDefault("strict", false)
	viper.SetDefault("redaction_level", "partial")
	viper.SetDefault("log_json", false)
	viper.SetDefault("log_level", "info")
}

// bindEnvVariables binds the GUARD_* override variables explicitly.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}
	mustBind("level", "GUARD_LEVEL")
	mustBind("strict", "GUARD_STRICT")
	mustBind("redaction_level", "GUARD_REDACTION_LEVEL")
	mustBind("cache_enabled", "GUARD_CACHE_ENABLED")
	mustBind("log_level", "GUARD_LOG_LEVEL")
	mustBind("log_json", "GUARD_LOG_JSON")
}
