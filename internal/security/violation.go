package security

import "strings"

// Severity ranks how dangerous a detected violation is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// riskWeight maps a severity to its contribution to the 0..100 risk score.
// Weights are additive and capped, so adding a detection never lowers risk.
func (s Severity) riskWeight() int {
	switch s {
	case SeverityLow:
		return 5
	case SeverityMedium:
		return 10
	case SeverityHigh:
		return 25
	case SeverityCritical:
		return 40
	default:
		return 0
	}
}

// Violation describes one security finding. Immutable once produced.
type Violation struct {
	Kind        string   // e.g. "command-injection", "prototype-pollution"
	Severity    Severity // drives the risk score and validity
	Path        string   // location within the validated structure ("" for scalar input)
	Description string   // human-readable finding
	Original    string   // offending value, truncated for safe reporting
	Remediation string   // suggested fix, may be empty
}

// maxOriginalLen bounds the excerpt of the offending value carried inside a
// Violation so reports cannot re-introduce the size problem they describe.
const maxOriginalLen = 64

// truncateOriginal prepares a value excerpt for embedding in a Violation.
func truncateOriginal(s string) string {
	if len(s) <= maxOriginalLen {
		return s
	}
	return s[:maxOriginalLen] + truncationMarker
}

// truncationMarker terminates any value the engine has shortened. Truncation
// always counts the marker inside the configured cap so that re-sanitizing
// already-truncated output is a no-op.
const truncationMarker = "...[truncated]"

// redactedPlaceholder replaces values that must not survive sanitization.
// Redaction is removal, not obfuscation: the original is unrecoverable.
const redactedPlaceholder = "[REDACTED]"

// riskScore aggregates violation severities into a 0..100 heuristic.
func riskScore(violations []Violation) int {
	score := 0
	for _, v := range violations {
		score += v.Severity.riskWeight()
	}
	if score > 100 {
		score = 100
	}
	return score
}

// maxSeverity returns the highest severity present, or -1 for none.
func maxSeverity(violations []Violation) Severity {
	max := Severity(-1)
	for _, v := range violations {
		if v.Severity > max {
			max = v.Severity
		}
	}
	return max
}

// hasSeverityAtLeast reports whether any violation meets the threshold.
func hasSeverityAtLeast(violations []Violation, threshold Severity) bool {
	return maxSeverity(violations) >= threshold
}

// truncateString shortens s to max bytes including the truncation marker,
// never splitting a UTF-8 sequence. Strings at or under the cap, including
// previously truncated ones, pass through unchanged (idempotence).
func truncateString(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	keep := max - len(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	cut := s[:keep]
	// Back off a partial UTF-8 sequence at the boundary.
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut + truncationMarker, true
}

// isTruncated reports whether a string already carries the truncation marker.
func isTruncated(s string) bool {
	return strings.HasSuffix(s, truncationMarker)
}
