package security

import "regexp"

// Category selects a subset of the detection rules.
type Category int

const (
	CategoryCommandInjection Category = iota
	CategoryPathTraversal
	CategoryScriptInjection
	CategorySensitiveValue
)

// String returns the category name used in violation kinds and logs.
func (c Category) String() string {
	switch c {
	case CategoryCommandInjection:
		return "command-injection"
	case CategoryPathTraversal:
		return "path-traversal"
	case CategoryScriptInjection:
		return "script-injection"
	case CategorySensitiveValue:
		return "sensitive-value"
	default:
		return "unknown"
	}
}

// maxPatternInput caps the bytes any rule may see. Go's regexp engine is
// linear-time (RE2), so the cap bounds the constant factor rather than
// preventing catastrophic backtracking, which RE2 cannot exhibit.
const maxPatternInput = 4096

// rule is one immutable detection rule. Rules hold no mutable state and are
// safe for concurrent use.
type rule struct {
	name        string
	re          *regexp.Regexp
	severity    Severity
	remediation string
}

// Detection tables. Built once at init, never mutated afterwards, so no
// synchronization is needed even under concurrent callers.
var patternRules = map[Category][]rule{
	CategoryCommandInjection: {
		{
			name:        "shell-metacharacters",
			re:          regexp.MustCompile("[;|&`\n]|\\$\\(|<\\(|>\\("),
			severity:    SeverityCritical,
			remediation: "remove shell metacharacters or pass arguments without a shell",
		},
		{
			name:        "destructive-command",
			re:          regexp.MustCompile(`(?i)\brm\s+(-[a-z]*[rf][a-z]*\s+)+(/|~|\*)|\bmkfs\b|\bdd\s+if=/dev/(zero|urandom)|\bshutdown\b|\breboot\b|:\(\)\s*\{`),
			severity:    SeverityCritical,
			remediation: "remove the embedded destructive command",
		},
		{
			name:        "command-substitution",
			re:          regexp.MustCompile("\\$\\{[^}]*\\}|`[^`]*`"),
			severity:    SeverityHigh,
			remediation: "remove command/variable substitution syntax",
		},
		{
			name:        "null-byte",
			re:          regexp.MustCompile(`\x00`),
			severity:    SeverityCritical,
			remediation: "remove null bytes",
		},
	},
	CategoryPathTraversal: {
		{
			name:        "parent-traversal",
			re:          regexp.MustCompile(`\.\.[/\\]|(^|[/\\])\.\.$`),
			severity:    SeverityHigh,
			remediation: "use a path relative to the working directory",
		},
		{
			name:        "encoded-traversal",
			re:          regexp.MustCompile(`(?i)%2e%2e(%2f|%5c)|\.\.%2f|%2e%2e/`),
			severity:    SeverityHigh,
			remediation: "decode and re-validate the path",
		},
		{
			name:        "sensitive-system-path",
			re:          regexp.MustCompile(`(?i)(^|[/\\])(etc|proc|sys|dev)[/\\]|[/\\]\.(ssh|aws|gnupg|kube)([/\\]|$)|(?i)c:\\windows\\`),
			severity:    SeverityCritical,
			remediation: "do not reference system or credential directories",
		},
	},
	CategoryScriptInjection: {
		{
			name:        "script-tag",
			re:          regexp.MustCompile(`(?i)<\s*/?\s*script\b`),
			severity:    SeverityHigh,
			remediation: "strip HTML/script markup from the value",
		},
		{
			name:        "javascript-uri",
			re:          regexp.MustCompile(`(?i)\bjavascript\s*:`),
			severity:    SeverityHigh,
			remediation: "strip script URIs from the value",
		},
		{
			name:        "event-handler",
			re:          regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus)\s*=`),
			severity:    SeverityMedium,
			remediation: "strip inline event handlers",
		},
		{
			name:        "dynamic-eval",
			re:          regexp.MustCompile(`(?i)\b(eval|execscript|settimeout|setinterval|new\s+function)\s*\(`),
			severity:    SeverityHigh,
			remediation: "remove dynamic code execution constructs",
		},
	},
	CategorySensitiveValue: {
		{
			name:        "api-key",
			re:          regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{8,}|\bAKIA[0-9A-Z]{16}\b|\bghp_[A-Za-z0-9]{36}\b|\bxox[baprs]-[0-9A-Za-z-]{8,}`),
			severity:    SeverityHigh,
			remediation: "remove the credential and rotate it",
		},
		{
			name:        "jwt-token",
			re:          regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]+`),
			severity:    SeverityHigh,
			remediation: "remove the token and rotate it",
		},
		{
			name:        "credential-assignment",
			re:          regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|api[_-]?key|access[_-]?key|private[_-]?key|auth[_-]?token)\s*[:=]\s*\S{4,}`),
			severity:    SeverityHigh,
			remediation: "remove the credential assignment",
		},
		{
			name:        "credential-in-url",
			re:          regexp.MustCompile(`[a-z][a-z0-9+.-]*://[^/\s:@]+:[^/\s@]+@`),
			severity:    SeverityHigh,
			remediation: "strip credentials from the URL",
		},
		{
			name:        "pem-block",
			re:          regexp.MustCompile(`-----BEGIN [A-Z ]+-----`),
			severity:    SeverityCritical,
			remediation: "never embed key material in logged values",
		},
		{
			name:        "email-address",
			re:          regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			severity:    SeverityMedium,
			remediation: "redact personal email addresses",
		},
	},
}

// PatternReport is the result of Analyze.
type PatternReport struct {
	Violations []Violation
	RiskScore  int // 0..100, additive over detections
}

// boundInput applies the hard length cap before any rule runs.
func boundInput(input string) string {
	if len(input) > maxPatternInput {
		return input[:maxPatternInput]
	}
	return input
}

// Matches reports whether input triggers any rule in the category.
// Input is length-capped before matching.
func Matches(input string, cat Category) bool {
	input = boundInput(input)
	for _, r := range patternRules[cat] {
		if r.re.MatchString(input) {
			return true
		}
	}
	return false
}

// Analyze runs input against every category and aggregates the findings into
// violations plus a 0..100 risk score. Adding sensitive content to an input
// can only add detections, so the score is monotonic in detected content.
func Analyze(input string) PatternReport {
	input = boundInput(input)
	var violations []Violation
	for _, cat := range []Category{
		CategoryCommandInjection,
		CategoryPathTraversal,
		CategoryScriptInjection,
		CategorySensitiveValue,
	} {
		violations = append(violations, analyzeCategory(input, cat)...)
	}
	return PatternReport{Violations: violations, RiskScore: riskScore(violations)}
}

// analyzeCategory collects violations for a single category.
func analyzeCategory(input string, cat Category) []Violation {
	var violations []Violation
	for _, r := range patternRules[cat] {
		if r.re.MatchString(input) {
			violations = append(violations, Violation{
				Kind:        cat.String() + ":" + r.name,
				Severity:    r.severity,
				Description: "input matches " + r.name + " pattern",
				Original:    truncateOriginal(input),
				Remediation: r.remediation,
			})
		}
	}
	return violations
}

// redactSensitive rewrites every sensitive-value match in s with the fixed
// placeholder. Used by the object sanitizer on string leaves.
func redactSensitive(s string) (string, bool) {
	s = boundInput(s)
	changed := false
	for _, r := range patternRules[CategorySensitiveValue] {
		if r.re.MatchString(s) {
			s = r.re.ReplaceAllString(s, redactedPlaceholder)
			changed = true
		}
	}
	return s, changed
}
