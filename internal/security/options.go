package security

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnsafeOption is returned when an options map smuggles in a value that
// could execute on read (a function or channel). Such values are rejected
// outright as a code-injection vector instead of being coerced or ignored.
var ErrUnsafeOption = errors.New("unsafe option value")

// logThrottle limits repeated security-event warnings so hostile input cannot
// flood the log. The first few events in each window always get through.
var logThrottle = rate.Sometimes{First: 5, Interval: time.Minute}

// maxSafeInt is the largest integer option value accepted from untrusted
// configuration, matching the safe-integer bound of double-precision floats
// so values decoded from JSON survive a round trip exactly.
const maxSafeInt = 1<<53 - 1

// Options configures the input validator. The zero value is usable; nil is
// treated as defaults. Callers' Options are never mutated: any fix-up of a
// bad value happens on a local copy during OptionsFromMap.
type Options struct {
	Strict             bool   // reject instead of best-effort sanitize
	AllowUnicodeNames  bool   // permit Unicode letters in names
	AllowAbsolutePaths bool   // permit absolute file paths
	AllowTraversal     bool   // permit ".." traversal (sensitive targets stay blocked)
	Root               string // working-directory root for path resolution
	MaxLength          int    // overrides the per-kind length bound when > 0
}

// defaultOptions is the compile-time baseline. Copied, never handed out.
var defaultOptions = Options{}

// orDefaults returns opts or the default configuration when nil.
func (o *Options) orDefaults() *Options {
	if o == nil {
		def := defaultOptions
		return &def
	}
	return o
}

// OptionsFromMap coerces an untrusted, duck-typed configuration map into a
// typed Options. The map itself is untrusted input:
//   - unknown keys are ignored with a warning, not an error
//   - type-mismatched values fall back to the default with a warning
//   - numeric values must be finite, non-negative, safely-representable
//     integers; anything else falls back with a warning
//   - function or channel values anywhere in the map return ErrUnsafeOption,
//     the engine's hard-failure path for active tampering
func OptionsFromMap(m map[string]any) (*Options, []string, error) {
	opts := defaultOptions
	var warnings []string

	for key, value := range m {
		if err := rejectComputedValue(key, value); err != nil {
			return nil, nil, err
		}

		switch strings.ToLower(key) {
		case "strict":
			coerceBool(&opts.Strict, key, value, &warnings)
		case "allow_unicode_names", "allowunicodenames":
			coerceBool(&opts.AllowUnicodeNames, key, value, &warnings)
		case "allow_absolute_paths", "allowabsolutepaths":
			coerceBool(&opts.AllowAbsolutePaths, key, value, &warnings)
		case "allow_traversal", "allowtraversal":
			coerceBool(&opts.AllowTraversal, key, value, &warnings)
		case "root":
			coerceString(&opts.Root, key, value, &warnings)
		case "max_length", "maxlength":
			coerceInt(&opts.MaxLength, key, value, &warnings)
		default:
			warnings = append(warnings, fmt.Sprintf("unknown option %q ignored", key))
		}
	}
	return &opts, warnings, nil
}

// rejectComputedValue guards against values that execute when read or that
// block when accessed. Maps are checked one level deep; nested maps are
// themselves walked so a callable cannot hide one level down.
func rejectComputedValue(key string, value any) error {
	if value == nil {
		return nil
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Errorf("%w: option %q holds a %s", ErrUnsafeOption, key, reflect.TypeOf(value).Kind())
	case reflect.Map:
		rv := reflect.ValueOf(value)
		for _, k := range rv.MapKeys() {
			inner := rv.MapIndex(k).Interface()
			if err := rejectComputedValue(key+"."+fmt.Sprint(k.Interface()), inner); err != nil {
				return err
			}
		}
	}
	return nil
}

// coerceBool assigns a boolean option, warning and keeping the default on a
// type mismatch.
func coerceBool(dst *bool, key string, value any, warnings *[]string) {
	b, ok := value.(bool)
	if !ok {
		*warnings = append(*warnings, fmt.Sprintf("option %q: expected bool, got %T; using default", key, value))
		return
	}
	*dst = b
}

// coerceString assigns a string option, warning on mismatch.
func coerceString(dst *string, key string, value any, warnings *[]string) {
	s, ok := value.(string)
	if !ok {
		*warnings = append(*warnings, fmt.Sprintf("option %q: expected string, got %T; using default", key, value))
		return
	}
	*dst = s
}

// coerceInt assigns a numeric option. The value must be a finite,
// non-negative, safely-representable integer; everything else keeps the
// default with a warning. Values above the safe range are clamped.
func coerceInt(dst *int, key string, value any, warnings *[]string) {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	default:
		*warnings = append(*warnings, fmt.Sprintf("option %q: expected number, got %T; using default", key, value))
		return
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) {
		*warnings = append(*warnings, fmt.Sprintf("option %q: value %v is not a finite non-negative integer; using default", key, f))
		return
	}
	if f > maxSafeInt {
		*warnings = append(*warnings, fmt.Sprintf("option %q: value clamped to safe maximum", key))
		f = maxSafeInt
	}
	*dst = int(f)
}
