package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RedactionLevel sets how aggressively context properties are removed before
// an error report leaves the process.
type RedactionLevel int

const (
	RedactionNone RedactionLevel = iota
	RedactionPartial
	RedactionFull
)

// String returns the redaction level name.
func (l RedactionLevel) String() string {
	switch l {
	case RedactionNone:
		return "none"
	case RedactionPartial:
		return "partial"
	case RedactionFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseRedactionLevel maps a configuration string to a RedactionLevel,
// defaulting to partial.
func ParseRedactionLevel(s string) RedactionLevel {
	switch s {
	case "none":
		return RedactionNone
	case "full":
		return RedactionFull
	default:
		return RedactionPartial
	}
}

// Error context bounds.
const (
	defaultMaxContextBytes    = 32 * 1024
	forwardingMaxContextBytes = 8 * 1024
	maxContextValueLength     = 1024
	maxErrorMessageLength     = 512
)

// ErrorContextConfig configures SanitizeErrorContext. Nil applies defaults.
type ErrorContextConfig struct {
	RedactionLevel    RedactionLevel
	AllowList         []string // properties surviving RedactionFull
	PreserveTimestamp bool
	PreserveCode      bool
	IncludeHints      bool // attach per-property redaction reasons (opt-in: hints disclose)
	SanitizeNested    bool // inspect nested values, not just top-level ones
	MaxContextBytes   int
}

// DefaultErrorContextConfig returns the partial-redaction defaults with
// timestamp and code preserved.
func DefaultErrorContextConfig() *ErrorContextConfig {
	return &ErrorContextConfig{
		RedactionLevel:    RedactionPartial,
		PreserveTimestamp: true,
		PreserveCode:      true,
		SanitizeNested:    true,
		MaxContextBytes:   defaultMaxContextBytes,
	}
}

func (c *ErrorContextConfig) orDefaults() *ErrorContextConfig {
	if c == nil {
		return DefaultErrorContextConfig()
	}
	out := *c
	if out.MaxContextBytes <= 0 {
		out.MaxContextBytes = defaultMaxContextBytes
	}
	return &out
}

// ErrorReport is the redacted, size-bounded, uniquely-identified payload
// produced from a thrown error and its side-channel context.
type ErrorReport struct {
	ID               string            // correlation key, always present
	Message          string            // redacted and length-capped
	Code             string            // error kind, empty unless preserved
	Timestamp        time.Time         // zero unless preserved
	Context          map[string]any    // surviving properties
	HadSensitiveData bool              // set when anything was redacted or dropped
	Warnings         []string          // degradations applied
	Hints            map[string]string // property -> redaction reason, opt-in
}

// ErrorSeverity grades a forwarded error payload.
type ErrorSeverity int

const (
	ErrorSeverityLow ErrorSeverity = iota
	ErrorSeverityMedium
	ErrorSeverityHigh
)

// String returns the severity grade name.
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityLow:
		return "low"
	case ErrorSeverityMedium:
		return "medium"
	case ErrorSeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// SafeErrorPayload is the stricter shape for payloads crossing a process or
// network boundary. The receiving collaborator serializes and transmits it
// as-is; it must not re-inspect or further redact.
type SafeErrorPayload struct {
	ID               string
	Message          string
	Severity         ErrorSeverity
	Timestamp        time.Time
	Context          map[string]any
	HadSensitiveData bool
}

// newErrorID builds the correlation ID: a time-bucketed prefix for human
// scanning plus a random suffix for collision resistance. Present on every
// report regardless of redaction level.
func newErrorID() string {
	bucket := time.Now().UTC().Format("20060102T15")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "ERR-" + bucket + "-" + suffix
}

// SanitizeErrorContext produces a redacted error report from a thrown error
// and an arbitrary context record. A nil error yields a report with an empty
// message rather than a failure; the engine's job is to make noisy input
// safe, not to crash on it.
func SanitizeErrorContext(err error, context map[string]any, cfg *ErrorContextConfig) ErrorReport {
	cfg = cfg.orDefaults()

	report := ErrorReport{
		ID:      newErrorID(),
		Context: make(map[string]any),
	}
	if cfg.IncludeHints {
		report.Hints = make(map[string]string)
	}
	if cfg.PreserveTimestamp {
		report.Timestamp = time.Now().UTC()
	}

	if err != nil {
		msg := err.Error()
		msg = stripControlChars(msg)
		msg, _ = truncateString(msg, maxErrorMessageLength)
		if redacted, changed := redactSensitive(msg); changed {
			msg = redacted
			report.HadSensitiveData = true
		}
		report.Message = msg
		if cfg.PreserveCode {
			report.Code = errorCode(err)
		}
	}

	// Oversized context degrades to per-value truncation plus a warning,
	// never wholesale redaction.
	oversized := estimateSize(context) > cfg.MaxContextBytes
	if oversized {
		report.Warnings = append(report.Warnings, "large context detected; individual values truncated")
	}

	for key, value := range context {
		kept, reason := filterContextProperty(key, value, cfg)
		if !kept {
			report.HadSensitiveData = true
			if cfg.IncludeHints {
				report.Hints[key] = reason
			}
			continue
		}
		report.Context[key] = boundContextValue(value, oversized, cfg)
	}

	if report.HadSensitiveData {
		warnSecurityEvent("error_context_redacted", "error_id", report.ID,
			"redaction_level", cfg.RedactionLevel.String())
	}
	return report
}

// filterContextProperty decides whether one top-level context property
// survives. Partial redaction drops triggering properties wholesale rather
// than partially rewriting them; full redaction keeps only allow-listed keys.
func filterContextProperty(key string, value any, cfg *ErrorContextConfig) (bool, string) {
	switch cfg.RedactionLevel {
	case RedactionNone:
		return true, ""
	case RedactionFull:
		for _, allowed := range cfg.AllowList {
			if strings.EqualFold(allowed, key) {
				return true, ""
			}
		}
		return false, "not on the allow-list"
	default:
		if sensitiveKeyName(key) {
			return false, "property name suggests a credential"
		}
		if valueTriggersDetectors(value, cfg.SanitizeNested, 0) {
			return false, "value matched a sensitive or injection pattern"
		}
		return true, ""
	}
}

// sensitiveKeyName flags property names that conventionally hold secrets.
var sensitiveKeySubstrings = []string{
	"password", "passwd", "secret", "token", "apikey", "api_key",
	"credential", "authorization", "privatekey", "private_key",
}

func sensitiveKeyName(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeySubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// valueTriggersDetectors reports whether a value, or any nested value when
// nested inspection is enabled, trips the sensitive or injection detectors.
func valueTriggersDetectors(value any, nested bool, depth int) bool {
	if depth > defaultMaxDepth {
		return false
	}
	switch v := value.(type) {
	case string:
		return Matches(v, CategorySensitiveValue) || Matches(v, CategoryCommandInjection)
	case map[string]any:
		if !nested {
			return false
		}
		for key, inner := range v {
			if sensitiveKeyName(key) || valueTriggersDetectors(inner, nested, depth+1) {
				return true
			}
		}
	case []any:
		if !nested {
			return false
		}
		for _, inner := range v {
			if valueTriggersDetectors(inner, nested, depth+1) {
				return true
			}
		}
	}
	return false
}

// boundContextValue runs a surviving property through the object sanitizer's
// size and cycle machinery. Oversized contexts additionally shrink each
// value's string cap.
func boundContextValue(value any, oversized bool, cfg *ErrorContextConfig) any {
	objCfg := DefaultObjectConfig()
	objCfg.CacheEnabled = false
	if cfg.RedactionLevel == RedactionNone {
		// No redaction decisions at level none; size bounds and cycle
		// safety still apply.
		objCfg.Level = LevelMinimal
	}
	if oversized {
		objCfg.MaxStringLength = maxContextValueLength
	}
	return SanitizeObject(value, "", objCfg).Sanitized
}

// errorCode derives a stable kind string from the error's type or message.
func errorCode(err error) string {
	code := fmt.Sprintf("%T", err)
	if i := strings.LastIndex(code, "."); i >= 0 {
		code = code[i+1:]
	}
	return strings.TrimPrefix(code, "*")
}

// securityErrorMarkers identify error kinds that always grade high when
// forwarded.
var securityErrorMarkers = []string{"security", "injection", "unsafe", "forbidden", "unauthorized"}

// CreateSafeErrorForForwarding is the stricter preset for payloads crossing
// a process or network boundary: partial redaction at minimum, lower size
// caps, and a computed severity derived from the error kind and from whether
// sensitive data was found.
func CreateSafeErrorForForwarding(err error, context map[string]any, cfg *ErrorContextConfig) SafeErrorPayload {
	cfg = cfg.orDefaults()
	strict := *cfg
	if strict.RedactionLevel < RedactionPartial {
		strict.RedactionLevel = RedactionPartial
	}
	if strict.MaxContextBytes > forwardingMaxContextBytes {
		strict.MaxContextBytes = forwardingMaxContextBytes
	}
	strict.SanitizeNested = true
	strict.IncludeHints = false

	report := SanitizeErrorContext(err, context, &strict)

	severity := ErrorSeverityLow
	if report.HadSensitiveData {
		severity = ErrorSeverityMedium
	}
	kind := strings.ToLower(errorCode(err) + " " + report.Message)
	for _, marker := range securityErrorMarkers {
		if strings.Contains(kind, marker) {
			severity = ErrorSeverityHigh
			break
		}
	}

	return SafeErrorPayload{
		ID:               report.ID,
		Message:          report.Message,
		Severity:         severity,
		Timestamp:        report.Timestamp,
		Context:          report.Context,
		HadSensitiveData: report.HadSensitiveData,
	}
}
