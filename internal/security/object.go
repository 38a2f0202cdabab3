package security

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Default object-sanitizer bounds. Doubling a limit escalates the violation
// from its base severity to critical.
const (
	defaultMaxDepth          = 16
	defaultMaxProperties     = 128
	defaultMaxSequenceLength = 512
	defaultMaxStringLength   = 4096
	defaultMaxBytes          = 256 * 1024
	defaultCacheTTL          = 5 * time.Minute
	defaultCacheMaxEntries   = 1024
	defaultBatchSize         = 64
	defaultMaxProcessing     = 2 * time.Second
)

// protoPollutionKeys are record keys that target the shared base object of
// prototype-based runtimes. Payloads decoded from JSON produced by such
// runtimes still carry them, so their direct presence is treated as an
// attack: the key is dropped and a critical violation recorded.
var protoPollutionKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// ObjectConfig bundles the object-sanitizer limits. Treated as immutable:
// the sanitizer never writes to it, and callers should not mutate one that
// is shared between goroutines.
type ObjectConfig struct {
	Level             Level
	MaxDepth          int
	MaxProperties     int
	MaxSequenceLength int
	MaxStringLength   int
	MaxBytes          int
	CacheEnabled      bool
	CacheTTL          time.Duration
	CacheMaxEntries   int
	BatchSize         int
	MaxProcessingTime time.Duration
	RedactPatterns    []*regexp.Regexp            // custom redactions applied to string leaves
	Overrides         map[Classification]Strategy // per-classification strategy, wins over the table
}

// DefaultObjectConfig returns the standard-level configuration.
func DefaultObjectConfig() *ObjectConfig {
	return &ObjectConfig{
		Level:             LevelStandard,
		MaxDepth:          defaultMaxDepth,
		MaxProperties:     defaultMaxProperties,
		MaxSequenceLength: defaultMaxSequenceLength,
		MaxStringLength:   defaultMaxStringLength,
		MaxBytes:          defaultMaxBytes,
		CacheEnabled:      true,
		CacheTTL:          defaultCacheTTL,
		CacheMaxEntries:   defaultCacheMaxEntries,
		BatchSize:         defaultBatchSize,
		MaxProcessingTime: defaultMaxProcessing,
	}
}

// orDefaults returns cfg, or the default configuration when nil, with zero
// limits backfilled on a local copy (caller configuration is never mutated).
func (c *ObjectConfig) orDefaults() *ObjectConfig {
	if c == nil {
		return DefaultObjectConfig()
	}
	out := *c
	def := DefaultObjectConfig()
	if out.MaxDepth <= 0 {
		out.MaxDepth = def.MaxDepth
	}
	if out.MaxProperties <= 0 {
		out.MaxProperties = def.MaxProperties
	}
	if out.MaxSequenceLength <= 0 {
		out.MaxSequenceLength = def.MaxSequenceLength
	}
	if out.MaxStringLength <= 0 {
		out.MaxStringLength = def.MaxStringLength
	}
	if out.MaxBytes <= 0 {
		out.MaxBytes = def.MaxBytes
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = def.CacheTTL
	}
	if out.CacheMaxEntries <= 0 {
		out.CacheMaxEntries = def.CacheMaxEntries
	}
	if out.BatchSize <= 0 {
		out.BatchSize = def.BatchSize
	}
	if out.MaxProcessingTime <= 0 {
		out.MaxProcessingTime = def.MaxProcessingTime
	}
	return &out
}

// ObjectMetrics counts what the sanitizer did.
type ObjectMetrics struct {
	NodesVisited      int
	NodesRemoved      int
	NodesRedacted     int
	StringsTruncated  int
	StringsRedacted   int
	PropertiesDropped int
	CacheHit          bool
}

// ObjectResult is the outcome of SanitizeObject. Valid is false when any
// critical violation was found, independent of whether a sanitized value was
// still produced.
type ObjectResult struct {
	Valid           bool
	Sanitized       any
	OriginalClass   Classification
	StrategyApplied Strategy
	SizeReduction   int
	Duration        time.Duration
	Violations      []Violation
	Warnings        []string
	Metrics         ObjectMetrics
}

// sanitizer carries per-call traversal state. One instance per call; nothing
// here is shared, so the engine itself needs no locking (only the cache does).
type sanitizer struct {
	cfg          *ObjectConfig
	deadline     time.Time
	overBudget   bool
	violations   []Violation
	warnings     []string
	metrics      ObjectMetrics
	depthFlagged bool
}

// SanitizeObject classifies, checks, and rewrites an arbitrary in-memory
// value so it is safe to log or persist. It never panics on finite input:
// cyclic, hostile, or oversized structures degrade to redaction, removal, or
// truncation with violations and warnings attached.
func SanitizeObject(value any, path string, cfg *ObjectConfig) ObjectResult {
	cfg = cfg.orDefaults()
	start := time.Now()

	var key uint64
	var cacheable bool
	if cfg.CacheEnabled {
		key, cacheable = cacheKey(value, path, cfg)
		if cacheable {
			if cached, ok := objectCache.get(key, cfg); ok {
				cached.Metrics.CacheHit = true
				cached.Duration = time.Since(start)
				return cached
			}
		}
	}

	s := &sanitizer{cfg: cfg, deadline: start.Add(cfg.MaxProcessingTime)}

	inputSize := estimateSize(value)
	if inputSize > cfg.MaxBytes {
		sev := SeverityHigh
		if inputSize > 2*cfg.MaxBytes {
			sev = SeverityCritical
		}
		s.addViolation("oversized", sev, path,
			fmt.Sprintf("estimated size %d bytes exceeds limit %d", inputSize, cfg.MaxBytes))
	}

	originalClass := classify(value, ancestorSet{})
	out, strategy, kept := s.sanitizeNode(value, path, 0, ancestorSet{})
	if !kept {
		out = nil
	}

	result := ObjectResult{
		Valid:           !hasSeverityAtLeast(s.violations, SeverityCritical),
		Sanitized:       out,
		OriginalClass:   originalClass,
		StrategyApplied: strategy,
		SizeReduction:   max(0, inputSize-estimateSize(out)),
		Duration:        time.Since(start),
		Violations:      s.violations,
		Warnings:        s.warnings,
		Metrics:         s.metrics,
	}

	if len(result.Violations) > 0 {
		warnSecurityEvent("object_sanitization_violation",
			"path", path,
			"class", originalClass.String(),
			"violations", len(result.Violations))
	}

	// An over-budget result is per-call noise, never representative: the key
	// excludes the time budget, so caching it would serve the degenerate
	// output to callers with a real budget.
	if cfg.CacheEnabled && cacheable && result.Valid && !s.overBudget {
		objectCache.put(key, result, cfg)
	}
	return result
}

func (s *sanitizer) addViolation(kind string, sev Severity, path, desc string) {
	s.violations = append(s.violations, Violation{
		Kind:        kind,
		Severity:    sev,
		Path:        path,
		Description: desc,
	})
}

func (s *sanitizer) addWarning(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

// sanitizeNode runs the per-node state machine:
// classify, detect violations, select strategy, apply.
// Returns the rewritten value, the strategy applied, and whether the node
// survives in its parent (false means remove).
func (s *sanitizer) sanitizeNode(value any, path string, depth int, ancestors ancestorSet) (any, Strategy, bool) {
	s.metrics.NodesVisited++

	// Wall-clock budget is a backstop: every unit of work below is itself
	// bounded, so checking between nodes is sufficient.
	if !s.overBudget && time.Now().After(s.deadline) {
		s.overBudget = true
		s.addWarning("processing time budget exceeded at %q; remaining values truncated", path)
	}
	if s.overBudget {
		return truncationMarker, StrategyTruncate, true
	}

	// Depth limit is an independent safety net on top of cycle detection.
	// Traversal stops here, so the remaining depth is probed (cheaply,
	// cycle-safe) to decide whether the overrun doubles the limit.
	if depth > s.cfg.MaxDepth {
		if !s.depthFlagged {
			s.depthFlagged = true
			sev := SeverityMedium
			if depth+measureDepth(value, s.cfg.MaxDepth+1) > 2*s.cfg.MaxDepth {
				sev = SeverityCritical
			}
			s.addViolation("deep-nesting", sev, path,
				fmt.Sprintf("nesting depth %d exceeds limit %d", depth, s.cfg.MaxDepth))
		}
		return truncationMarker, StrategyTruncate, true
	}

	class := classify(value, ancestors)
	nodeViolations := s.detectNodeViolations(value, class, path)
	s.violations = append(s.violations, nodeViolations...)

	strategy := selectStrategy(s.cfg, class, nodeViolations)
	out, kept := s.applyStrategy(value, class, strategy, path, depth, ancestors)
	return out, strategy, kept
}

// detectNodeViolations runs the checks that are independent of
// classification: pattern matches on string leaves and circular references.
// Structural checks (pollution keys, property caps) happen where the
// structure is walked.
func (s *sanitizer) detectNodeViolations(value any, class Classification, path string) []Violation {
	var violations []Violation
	switch class {
	case ClassCircular:
		violations = append(violations, Violation{
			Kind:        "circular-reference",
			Severity:    SeverityMedium,
			Path:        path,
			Description: "value references an ancestor on the current traversal path",
		})
	case ClassPrimitive:
		if str, ok := value.(string); ok {
			for _, v := range Analyze(str).Violations {
				v.Path = path
				violations = append(violations, v)
			}
		}
	}
	return violations
}

// applyStrategy rewrites the node under the selected strategy. Only sanitize
// recurses into children.
func (s *sanitizer) applyStrategy(value any, class Classification, strategy Strategy, path string, depth int, ancestors ancestorSet) (any, bool) {
	switch strategy {
	case StrategyPreserve:
		return value, true
	case StrategyRemove:
		s.metrics.NodesRemoved++
		return nil, false
	case StrategyRedact:
		s.metrics.NodesRedacted++
		return redactedPlaceholder, true
	case StrategyTruncate:
		return s.truncateValue(value, path)
	case StrategyFlatten:
		return s.flattenValue(value, path), true
	case StrategySanitize:
		switch class {
		case ClassPrimitive:
			return s.sanitizePrimitive(value, path), true
		case ClassRecord:
			return s.sanitizeRecord(value, path, depth, ancestors), true
		case ClassSequence:
			return s.sanitizeSequence(value, path, depth, ancestors), true
		default:
			// Sanitize on a leaf type degrades to preserve.
			return value, true
		}
	default:
		s.metrics.NodesRemoved++
		return nil, false
	}
}

// sanitizePrimitive rewrites scalar leaves: strings are truncated, matched
// against custom redaction patterns, and stripped of sensitive values;
// non-finite or unsafely large numbers become zero with a warning.
func (s *sanitizer) sanitizePrimitive(value any, path string) any {
	switch v := value.(type) {
	case string:
		out, truncated := truncateString(v, s.cfg.MaxStringLength)
		if truncated {
			s.metrics.StringsTruncated++
		}
		for _, re := range s.cfg.RedactPatterns {
			if re.MatchString(out) {
				out = re.ReplaceAllString(out, redactedPlaceholder)
				s.metrics.StringsRedacted++
			}
		}
		if redacted, changed := redactSensitive(out); changed {
			out = redacted
			s.metrics.StringsRedacted++
		}
		return out
	case float64:
		return s.sanitizeFloat(v, path)
	case float32:
		return s.sanitizeFloat(float64(v), path)
	case int64:
		if v > maxSafeInt || v < -maxSafeInt {
			s.addWarning("unsafely large integer at %q replaced with zero", path)
			return int64(0)
		}
		return v
	case uint64:
		if v > maxSafeInt {
			s.addWarning("unsafely large integer at %q replaced with zero", path)
			return uint64(0)
		}
		return v
	default:
		return value
	}
}

func (s *sanitizer) sanitizeFloat(f float64, path string) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxSafeInt {
		s.addWarning("non-finite or unsafe number at %q replaced with zero", path)
		return 0
	}
	return f
}

// sanitizeRecord walks a map in stable key order, drops pollution keys with a
// critical violation, keeps the first MaxProperties keys, and recurses into
// the survivors.
func (s *sanitizer) sanitizeRecord(value any, path string, depth int, ancestors ancestorSet) map[string]any {
	rv := dereference(reflect.ValueOf(value))

	id := identity(rv)
	if id != 0 {
		ancestors[id] = struct{}{}
		defer delete(ancestors, id)
	}

	keys := make([]string, 0, rv.Len())
	byKey := make(map[string]reflect.Value, rv.Len())
	for _, k := range rv.MapKeys() {
		ks := fmt.Sprint(k.Interface())
		keys = append(keys, ks)
		byKey[ks] = rv.MapIndex(k)
	}
	sort.Strings(keys)

	out := make(map[string]any)
	kept := 0
	dropped := 0
	for _, k := range keys {
		if protoPollutionKeys[strings.ToLower(k)] {
			s.addViolation("prototype-pollution", SeverityCritical, childPath(path, k),
				fmt.Sprintf("record contains pollution key %q; value dropped", k))
			s.metrics.NodesRemoved++
			continue
		}
		if kept >= s.cfg.MaxProperties {
			dropped++
			continue
		}
		child, _, keepChild := s.sanitizeNode(valueInterface(byKey[k]), childPath(path, k), depth+1, ancestors)
		if keepChild {
			out[k] = child
		}
		kept++
	}
	if dropped > 0 {
		s.metrics.PropertiesDropped += dropped
		s.addWarning("record at %q truncated: %d properties beyond the %d-property cap dropped",
			path, dropped, s.cfg.MaxProperties)
	}
	return out
}

// sanitizeSequence walks a slice or array, capping its length and recursing
// into the retained elements.
func (s *sanitizer) sanitizeSequence(value any, path string, depth int, ancestors ancestorSet) []any {
	rv := dereference(reflect.ValueOf(value))

	id := identity(rv)
	if id != 0 {
		ancestors[id] = struct{}{}
		defer delete(ancestors, id)
	}

	n := rv.Len()
	limit := n
	if limit > s.cfg.MaxSequenceLength {
		limit = s.cfg.MaxSequenceLength
		s.addWarning("sequence at %q truncated: %d elements beyond the %d-element cap dropped",
			path, n-limit, s.cfg.MaxSequenceLength)
	}

	out := make([]any, 0, limit)
	for i := 0; i < limit; i++ {
		child, _, keepChild := s.sanitizeNode(valueInterface(rv.Index(i)), fmt.Sprintf("%s[%d]", path, i), depth+1, ancestors)
		if keepChild {
			out = append(out, child)
		}
	}
	return out
}

// truncateValue shortens a leaf in place of full sanitization.
func (s *sanitizer) truncateValue(value any, path string) (any, bool) {
	switch v := value.(type) {
	case string:
		out, truncated := truncateString(v, s.cfg.MaxStringLength)
		if truncated {
			s.metrics.StringsTruncated++
		}
		return out, true
	case []byte:
		if len(v) > s.cfg.MaxStringLength {
			s.metrics.StringsTruncated++
			s.addWarning("binary value at %q truncated to %d bytes", path, s.cfg.MaxStringLength)
			out := make([]byte, s.cfg.MaxStringLength)
			copy(out, v)
			return out, true
		}
		return v, true
	default:
		return value, true
	}
}

// flattenValue collapses a class instance into a one-level record of its
// exported fields, each rendered as a sanitized string.
func (s *sanitizer) flattenValue(value any, path string) any {
	rv := dereference(reflect.ValueOf(value))
	if rv.Kind() != reflect.Struct {
		rendered, _ := truncateString(fmt.Sprintf("%v", value), s.cfg.MaxStringLength)
		redacted, _ := redactSensitive(rendered)
		return redacted
	}

	out := make(map[string]any, rv.NumField())
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		rendered, _ := truncateString(fmt.Sprintf("%v", rv.Field(i).Interface()), s.cfg.MaxStringLength)
		redacted, _ := redactSensitive(rendered)
		out[field.Name] = redacted
	}
	return out
}

// dereference unwraps pointers and interfaces to the underlying value.
func dereference(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}

// valueInterface safely extracts an interface from a reflect.Value, shielding
// the traversal from unexported or invalid values.
func valueInterface(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// childPath joins a parent path and key for violation reporting.
func childPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// measureDepth probes how deep a structure nests, capped so the probe itself
// stays bounded. Cycle-safe via the same ancestor discipline as traversal.
func measureDepth(value any, limit int) int {
	return measureDepthBounded(value, limit, ancestorSet{})
}

func measureDepthBounded(value any, limit int, ancestors ancestorSet) int {
	if limit <= 0 || value == nil {
		return 0
	}
	rv := dereference(reflect.ValueOf(value))
	if !rv.IsValid() {
		return 0
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		if id := identity(rv); id != 0 {
			if ancestors.contains(id) {
				return 0
			}
			ancestors[id] = struct{}{}
			defer delete(ancestors, id)
		}
		deepest := 0
		if rv.Kind() == reflect.Map {
			for _, k := range rv.MapKeys() {
				if d := measureDepthBounded(valueInterface(rv.MapIndex(k)), limit-1, ancestors); d > deepest {
					deepest = d
				}
			}
		} else {
			for i := 0; i < rv.Len(); i++ {
				if d := measureDepthBounded(valueInterface(rv.Index(i)), limit-1, ancestors); d > deepest {
					deepest = d
				}
			}
		}
		return 1 + deepest
	default:
		return 0
	}
}

// estimateSizeBudget caps the nodes visited during size estimation so the
// estimate itself stays bounded.
const estimateSizeBudget = 50000

// estimateSize approximates the serialized byte size of a value. Cycle-safe
// and node-capped; an approximation is all the oversize check needs.
func estimateSize(value any) int {
	budget := estimateSizeBudget
	return estimateSizeBounded(value, ancestorSet{}, &budget)
}

func estimateSizeBounded(value any, ancestors ancestorSet, budget *int) int {
	if *budget <= 0 || value == nil {
		return 0
	}
	*budget--

	switch v := value.(type) {
	case string:
		return len(v) + 2
	case []byte:
		return len(v)
	case bool:
		return 5
	case time.Time:
		return 25
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 4
		}
		if ancestors.contains(rv.Pointer()) {
			return 0
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return 5
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 8
	case reflect.String:
		return rv.Len() + 2
	case reflect.Map:
		if id := identity(rv); id != 0 {
			if ancestors.contains(id) {
				return 0
			}
			ancestors[id] = struct{}{}
			defer delete(ancestors, id)
		}
		total := 2
		for _, k := range rv.MapKeys() {
			total += len(fmt.Sprint(k.Interface())) + 4
			total += estimateSizeBounded(valueInterface(rv.MapIndex(k)), ancestors, budget)
			if *budget <= 0 {
				break
			}
		}
		return total
	case reflect.Slice, reflect.Array:
		if id := identity(rv); id != 0 {
			if ancestors.contains(id) {
				return 0
			}
			ancestors[id] = struct{}{}
			defer delete(ancestors, id)
		}
		total := 2
		for i := 0; i < rv.Len(); i++ {
			total += estimateSizeBounded(valueInterface(rv.Index(i)), ancestors, budget) + 1
			if *budget <= 0 {
				break
			}
		}
		return total
	case reflect.Struct:
		total := 2
		for i := 0; i < rv.NumField(); i++ {
			total += estimateSizeBounded(valueInterface(rv.Field(i)), ancestors, budget) + 4
			if *budget <= 0 {
				break
			}
		}
		return total
	default:
		return 8
	}
}
