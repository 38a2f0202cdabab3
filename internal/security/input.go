package security

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// InputKind selects the rule set applied by ValidateInput.
type InputKind int

const (
	KindName InputKind = iota
	KindPackageManager
	KindPath
	KindShellArg
)

// String returns the kind name used in logs and violation paths.
func (k InputKind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindPackageManager:
		return "package-manager"
	case KindPath:
		return "path"
	case KindShellArg:
		return "shell-arg"
	default:
		return "unknown"
	}
}

// ErrInjection is returned by SanitizeCommandArgs in strict mode when an
// argument matches an injection pattern. It is one of the two hard failures
// the engine can produce.
var ErrInjection = errors.New("command injection detected")

// Name length bounds follow package-registry conventions.
const (
	minNameLength = 2
	maxNameLength = 214
)

// maxShellArgLength bounds each argument before any pattern test runs,
// defending against memory exhaustion via a single huge token.
const maxShellArgLength = 10000

// packageManagerWhitelist is the fixed set of accepted manager identifiers.
// Immutable after init; anything else is a violation regardless of strictness.
var packageManagerWhitelist = []string{"npm", "yarn", "pnpm", "bun", "deno"}

// sensitivePathPrefixes are absolute targets blocked even when traversal or
// absolute paths are nominally allowed.
var sensitivePathPrefixes = []string{
	"/etc/", "/proc/", "/sys/", "/dev/", "/root/",
	"/var/run/secrets/",
}

// sensitivePathSegments match anywhere in a path.
var sensitivePathSegments = []string{".ssh", ".aws", ".gnupg", ".kube", ".netrc"}

// ValidationResult is the outcome of ValidateInput. Valid is derived from the
// violations during finalization, never set directly by rule code.
type ValidationResult struct {
	Valid       bool
	Sanitized   string
	Violations  []Violation
	Suggestions []string
	Warnings    []string
	RiskScore   int // 0..100
}

// finalize derives Valid and RiskScore from the collected violations using
// the kind-specific bar:
//   - names: any violation at all invalidates (user-chosen names are held to
//     an all-rules-pass standard, intentionally stricter than other kinds)
//   - everything else: medium or above invalidates
func (r *ValidationResult) finalize(kind InputKind) {
	r.RiskScore = riskScore(r.Violations)
	switch kind {
	case KindName:
		r.Valid = len(r.Violations) == 0
	default:
		r.Valid = !hasSeverityAtLeast(r.Violations, SeverityMedium)
	}
}

// addViolation appends a violation built from the raw input.
func (r *ValidationResult) addViolation(kind string, sev Severity, raw, desc, remedy string) {
	r.Violations = append(r.Violations, Violation{
		Kind:        kind,
		Severity:    sev,
		Description: desc,
		Original:    truncateOriginal(raw),
		Remediation: remedy,
	})
}

// ValidateInput validates and normalizes one discrete input of the given
// kind. It never panics and never returns an error: malformed or hostile
// input is reported through violations, and Sanitized always holds the
// best-effort safe form.
func ValidateInput(raw string, kind InputKind, opts *Options) ValidationResult {
	opts = opts.orDefaults()

	var result ValidationResult
	switch kind {
	case KindName:
		result = validateName(raw, opts)
	case KindPackageManager:
		result = validatePackageManager(raw, opts)
	case KindPath:
		result = validatePath(raw, opts)
	case KindShellArg:
		result = validateShellArg(raw, opts)
	default:
		result.addViolation("malformed-input", SeverityCritical, raw,
			fmt.Sprintf("unknown input kind %d", kind), "use a supported input kind")
		result.Sanitized = ""
	}

	result.finalize(kind)
	if len(result.Violations) > 0 {
		warnSecurityEvent("input_validation_violation",
			"kind", kind.String(),
			"violations", len(result.Violations),
			"risk_score", result.RiskScore)
	}
	return result
}

// validateName checks a user-chosen identifier (project name and similar).
func validateName(raw string, opts *Options) ValidationResult {
	var r ValidationResult

	// Canonical composed form first so every later rule sees one
	// representation. A large length divergence between normalization forms
	// signals obfuscation via alternate Unicode encodings.
	composed := norm.NFC.String(raw)
	compat := norm.NFKC.String(raw)
	if divergesSignificantly(len(composed), len(compat)) {
		r.addViolation("unicode-obfuscation", SeverityHigh, raw,
			"normalization forms diverge significantly in length; possible validation bypass",
			"use plain ASCII characters")
	}

	stripped, hadZeroWidth := stripZeroWidth(composed)
	if hadZeroWidth {
		r.addViolation("zero-width-characters", SeverityMedium, raw,
			"name contains zero-width or format characters",
			"remove invisible characters")
	}

	name := stripped
	if n := len(name); n < minNameLength || n > maxNameLength {
		r.addViolation("invalid-length", SeverityMedium, raw,
			fmt.Sprintf("name must be %d-%d characters, got %d", minNameLength, maxNameLength, n),
			"choose a name within the length bounds")
	}

	hasUpper := false
	hasSpace := false
	hasInvalid := false
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c == ' ':
			hasSpace = true
		case opts.AllowUnicodeNames && unicode.IsLetter(c):
		default:
			hasInvalid = true
		}
	}
	if hasUpper {
		r.addViolation("invalid-case", SeverityLow, raw,
			"name contains uppercase characters", "use lowercase")
		r.Suggestions = append(r.Suggestions, "lowercase the name")
	}
	if hasSpace || hasInvalid {
		r.addViolation("invalid-characters", SeverityMedium, raw,
			"name contains characters outside [a-z0-9._-]",
			"replace spaces with '-' and remove punctuation")
		r.Suggestions = append(r.Suggestions, "replace spaces with '-' and drop other punctuation")
	}

	if isSeparator(firstRune(name)) || isSeparator(lastRune(name)) {
		r.addViolation("edge-separator", SeverityLow, raw,
			"name starts or ends with a separator", "trim leading/trailing separators")
	}
	if strings.Contains(name, "..") || strings.Contains(name, "--") ||
		strings.Contains(name, "__") || strings.Contains(name, "._") {
		r.addViolation("doubled-separator", SeverityLow, raw,
			"name contains consecutive separators", "collapse repeated separators")
	}

	for _, v := range Analyze(name).Violations {
		v.Path = "name"
		r.Violations = append(r.Violations, v)
	}

	r.Sanitized = sanitizeName(name)
	return r
}

// sanitizeName produces the suggested safe form: lowercase, spaces replaced
// with '-', invalid characters dropped, separators collapsed and trimmed.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			b.WriteRune(c)
		case c == ' ':
			b.WriteRune('-')
		}
	}
	out := b.String()
	for _, sep := range []string{"--", "..", "__"} {
		for strings.Contains(out, sep) {
			out = strings.ReplaceAll(out, sep, sep[:1])
		}
	}
	out = strings.Trim(out, "._-")
	if len(out) > maxNameLength {
		// The cut can expose a trailing separator; trim again. Every byte
		// here is ASCII, so the cut cannot split a rune.
		out = strings.Trim(out[:maxNameLength], "._-")
	}
	return out
}

// validatePackageManager checks membership in the fixed whitelist. A miss is
// high severity and invalidates in every mode; embedded injection characters
// are always critical.
func validatePackageManager(raw string, opts *Options) ValidationResult {
	var r ValidationResult
	pm := strings.ToLower(strings.TrimSpace(raw))

	if Matches(raw, CategoryCommandInjection) {
		r.addViolation("command-injection", SeverityCritical, raw,
			"package manager value contains command injection characters",
			"supply a bare manager name")
	}

	inWhitelist := false
	for _, allowed := range packageManagerWhitelist {
		if pm == allowed {
			inWhitelist = true
			break
		}
	}
	if !inWhitelist {
		sev := SeverityHigh
		if opts.Strict {
			sev = SeverityCritical
		}
		r.addViolation("whitelist-miss", sev, raw,
			fmt.Sprintf("%q is not a known package manager", pm),
			fmt.Sprintf("use one of: %s", strings.Join(packageManagerWhitelist, ", ")))
		r.Sanitized = ""
	} else {
		r.Sanitized = pm
	}
	return r
}

// validatePath rejects absolute paths and traversal unless allowed, resolves
// the path under the configured root, and blocks sensitive absolute targets
// unconditionally.
func validatePath(raw string, opts *Options) ValidationResult {
	var r ValidationResult

	if strings.ContainsRune(raw, 0) {
		r.addViolation("null-byte", SeverityCritical, raw,
			"path contains a null byte", "remove null bytes")
		r.Sanitized = ""
		return r
	}

	clean := filepath.Clean(raw)

	if filepath.IsAbs(clean) && !opts.AllowAbsolutePaths {
		r.addViolation("absolute-path", SeverityHigh, raw,
			"absolute paths are not allowed", "use a path relative to the project root")
	}
	if Matches(raw, CategoryPathTraversal) && !opts.AllowTraversal {
		r.addViolation("path-traversal", SeverityHigh, raw,
			"path contains traversal sequences", "use a path inside the project root")
	}

	// Sensitive targets are blocked even when traversal/absolute are allowed.
	if isSensitivePath(clean) {
		r.addViolation("sensitive-path", SeverityCritical, raw,
			"path references a system or credential location",
			"do not reference system configuration or credential directories")
	}

	// Resolve against the root and reject escapes. filepath.Clean has already
	// collapsed any ".." segments, so a relative result that still starts
	// with ".." escapes the root.
	root := opts.Root
	if root == "" {
		root = "."
	}
	resolved := clean
	if !filepath.IsAbs(clean) {
		resolved = filepath.Join(root, clean)
		rel, err := filepath.Rel(root, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			if !opts.AllowTraversal {
				r.addViolation("root-escape", SeverityHigh, raw,
					"resolved path escapes the working-directory root",
					"use a path inside the project root")
			}
		}
	}

	if hasSeverityAtLeast(r.Violations, SeverityMedium) {
		r.Sanitized = ""
	} else {
		r.Sanitized = resolved
	}
	return r
}

// isSensitivePath checks a cleaned path against known system and credential
// locations, case-insensitively.
func isSensitivePath(clean string) bool {
	lower := strings.ToLower(filepath.ToSlash(clean))
	for _, prefix := range sensitivePathPrefixes {
		if strings.HasPrefix(lower+"/", prefix) || strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, seg := range sensitivePathSegments {
		if strings.Contains(lower, "/"+seg+"/") || strings.HasSuffix(lower, "/"+seg) {
			return true
		}
	}
	return strings.HasPrefix(lower, "c:/windows") || strings.HasPrefix(lower, `\\`)
}

// validateShellArg checks a single shell token. The argument is length-bounded
// before any pattern test runs.
func validateShellArg(raw string, opts *Options) ValidationResult {
	var r ValidationResult

	if len(raw) > maxShellArgLength {
		r.addViolation("oversized-argument", SeverityHigh, raw,
			fmt.Sprintf("argument is %d bytes, max %d", len(raw), maxShellArgLength),
			"split or shorten the argument")
		raw = raw[:maxShellArgLength]
	}

	report := analyzeCategory(boundInput(raw), CategoryCommandInjection)
	r.Violations = append(r.Violations, report...)

	if len(report) > 0 && !opts.Strict {
		r.Sanitized = stripDangerous(raw)
		r.Warnings = append(r.Warnings, "dangerous content removed from argument")
	} else if len(report) > 0 {
		r.Sanitized = ""
	} else {
		r.Sanitized = raw
	}
	return r
}

// dangerousSubstrings are best-effort removals applied in non-strict mode.
var dangerousSubstrings = []string{
	"rm -rf", "rm -fr", "mkfs", "dd if=", "shutdown", "reboot", "sudo su",
}

// stripDangerous removes shell metacharacters and destructive command names
// from an argument. Best-effort only; strict mode rejects instead.
func stripDangerous(arg string) string {
	lower := strings.ToLower(arg)
	for _, s := range dangerousSubstrings {
		for {
			i := strings.Index(lower, s)
			if i < 0 {
				break
			}
			arg = arg[:i] + arg[i+len(s):]
			lower = lower[:i] + lower[i+len(s):]
		}
	}
	var b strings.Builder
	for _, c := range arg {
		if strings.ContainsRune(";|&`$()<>\n\x00", c) {
			continue
		}
		b.WriteRune(c)
	}
	return strings.TrimSpace(b.String())
}

// SanitizeCommandArgs validates an argument vector before it reaches a
// process-execution wrapper. In strict mode any injection-pattern match
// returns ErrInjection; otherwise dangerous tokens are removed best-effort
// and arguments that sanitize to nothing are dropped.
func SanitizeCommandArgs(args []string, opts *Options) ([]string, error) {
	opts = opts.orDefaults()

	sanitized := make([]string, 0, len(args))
	for i, arg := range args {
		result := validateShellArg(arg, opts)
		result.finalize(KindShellArg)
		if result.Valid {
			sanitized = append(sanitized, result.Sanitized)
			continue
		}
		if opts.Strict {
			warnSecurityEvent("command_arg_rejected", "arg_index", i)
			return nil, fmt.Errorf("%w: argument %d", ErrInjection, i)
		}
		warnSecurityEvent("command_arg_sanitized", "arg_index", i)
		// Stripped tokens that no longer carry real content are dropped
		// rather than forwarded as stray punctuation.
		if hasSubstance(result.Sanitized) {
			sanitized = append(sanitized, result.Sanitized)
		}
	}
	return sanitized, nil
}

// divergesSignificantly reports whether two normalization-form lengths differ
// enough to suggest deliberate obfuscation rather than ordinary accents.
func divergesSignificantly(a, b int) bool {
	if a == b {
		return false
	}
	big, small := a, b
	if small > big {
		big, small = small, big
	}
	if small == 0 {
		return big > 0
	}
	return big-small > 2 && big*100/small > 120
}

// stripZeroWidth removes zero-width and Unicode format characters.
func stripZeroWidth(s string) (string, bool) {
	var b strings.Builder
	stripped := false
	for _, c := range s {
		if unicode.Is(unicode.Cf, c) || c == '\uFEFF' {
			stripped = true
			continue
		}
		b.WriteRune(c)
	}
	if !stripped {
		return s, false
	}
	return b.String(), true
}

// hasSubstance reports whether a sanitized token still carries content worth
// passing along. Tokens reduced to separators or slashes are dropped.
func hasSubstance(s string) bool {
	for _, c := range s {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			return true
		}
	}
	return false
}

func isSeparator(c rune) bool { return c == '.' || c == '_' || c == '-' }

func firstRune(s string) rune {
	for _, c := range s {
		return c
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, c := range s {
		last = c
	}
	return last
}

// warnSecurityEvent logs a throttled warning carrying a security_event key.
// Throttling keeps hostile input from flooding the log.
func warnSecurityEvent(event string, args ...any) {
	logThrottle.Do(func() {
		slog.Warn("security event detected",
			append([]any{"security_event", event}, args...)...)
	})
}
