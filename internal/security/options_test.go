package security

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func warningsMention(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestOptionsFromMap(t *testing.T) {
	opts, warnings, err := OptionsFromMap(map[string]any{
		"strict":     true,
		"root":       "/srv/project",
		"max_length": float64(42), // JSON numbers decode as float64
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.Strict || opts.Root != "/srv/project" || opts.MaxLength != 42 {
		t.Errorf("got %+v", opts)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestOptionsFromMapUnknownKey(t *testing.T) {
	opts, warnings, err := OptionsFromMap(map[string]any{"bogus": 1, "strict": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.Strict {
		t.Error("known keys should still apply")
	}
	if !warningsMention(warnings, "bogus") {
		t.Errorf("expected a warning naming the unknown key, got %v", warnings)
	}
}

func TestOptionsFromMapTypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		m    map[string]any
	}{
		{"string for bool", map[string]any{"strict": "yes"}},
		{"bool for string", map[string]any{"root": true}},
		{"string for number", map[string]any{"max_length": "many"}},
		{"negative number", map[string]any{"max_length": -5}},
		{"fractional number", map[string]any{"max_length": 3.5}},
		{"nan", map[string]any{"max_length": math.NaN()}},
		{"infinity", map[string]any{"max_length": math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, warnings, err := OptionsFromMap(tt.m)
			if err != nil {
				t.Fatalf("mismatches must warn, not fail: %v", err)
			}
			if len(warnings) == 0 {
				t.Error("expected a warning")
			}
			// Defaults survive the bad value.
			if opts.Strict || opts.Root != "" || opts.MaxLength != 0 {
				t.Errorf("default not preserved: %+v", opts)
			}
		})
	}
}

func TestOptionsFromMapClampsLargeNumbers(t *testing.T) {
	opts, warnings, err := OptionsFromMap(map[string]any{"max_length": float64(1 << 60)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.MaxLength != maxSafeInt {
		t.Errorf("MaxLength = %d, want clamp to %d", opts.MaxLength, maxSafeInt)
	}
	if !warningsMention(warnings, "clamped") {
		t.Errorf("expected a clamp warning, got %v", warnings)
	}
}

func TestOptionsFromMapRejectsComputedValues(t *testing.T) {
	tests := []struct {
		name string
		m    map[string]any
	}{
		{"function value", map[string]any{"strict": func() bool { return true }}},
		{"channel value", map[string]any{"root": make(chan string)}},
		{"function nested in a map", map[string]any{
			"extra": map[string]any{"hook": func() {}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _, err := OptionsFromMap(tt.m)
			if !errors.Is(err, ErrUnsafeOption) {
				t.Fatalf("expected ErrUnsafeOption, got %v", err)
			}
			if opts != nil {
				t.Errorf("no options should be returned on rejection, got %+v", opts)
			}
		})
	}
}

func TestOptionsFromMapNilAndEmpty(t *testing.T) {
	opts, warnings, err := OptionsFromMap(nil)
	if err != nil || len(warnings) != 0 {
		t.Fatalf("got warnings=%v err=%v", warnings, err)
	}
	if *opts != (Options{}) {
		t.Errorf("expected zero options, got %+v", opts)
	}

	opts, _, err = OptionsFromMap(map[string]any{"root": nil})
	if err != nil {
		t.Fatalf("nil values must not fail: %v", err)
	}
	if opts.Root != "" {
		t.Errorf("nil value should keep the default, got %q", opts.Root)
	}
}
