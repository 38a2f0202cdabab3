package security

import (
	"regexp"
	"strings"
	"unicode"
)

// Stack trace bounds. The whole-input cap runs before any pattern does,
// eliminating ReDoS surface from the outset; the per-line cap bounds each
// unit of work so the wall-clock check stays a backstop.
const (
	maxTraceBytes      = 64 * 1024
	maxTraceLineLength = 1024
	defaultMaxFrames   = 30
	maxExcerptLength   = 80
)

// TraceDetail selects how much of the trace body survives sanitization.
type TraceDetail int

const (
	TraceDetailSanitized TraceDetail = iota // redacted frames (default)
	TraceDetailRaw                          // frames kept verbatim after bounding
	TraceDetailNone                         // frames dropped entirely
)

// TraceConfig configures SanitizeStackTrace. The zero value applies the
// defaults; nil is accepted.
type TraceConfig struct {
	RedactFilePaths bool        // mask filesystem paths (default on via DefaultTraceConfig)
	Detail          TraceDetail // none, sanitized, or raw
	MaxFrames       int         // frames retained after the header line
	MaxLineLength   int         // per-line cap before any pattern runs
}

// DefaultTraceConfig returns the sanitized-detail defaults.
func DefaultTraceConfig() *TraceConfig {
	return &TraceConfig{
		RedactFilePaths: true,
		Detail:          TraceDetailSanitized,
		MaxFrames:       defaultMaxFrames,
		MaxLineLength:   maxTraceLineLength,
	}
}

func (c *TraceConfig) orDefaults() *TraceConfig {
	if c == nil {
		return DefaultTraceConfig()
	}
	out := *c
	if out.MaxFrames <= 0 {
		out.MaxFrames = defaultMaxFrames
	}
	if out.MaxLineLength <= 0 {
		out.MaxLineLength = maxTraceLineLength
	}
	return &out
}

// Path redaction patterns. Each is a fixed prefix followed by a single
// character class with one quantifier, so matching stays linear over
// attacker-controlled spans.
var (
	ansiEscapeRE = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]|\x9b[0-9;]*[A-Za-z]`)
	homeDirRE    = regexp.MustCompile(`(?i)(/home|/Users)/[\w.-]+[\w./-]*`)
	winHomeDirRE = regexp.MustCompile(`(?i)[A-Z]:\\Users\\[\w.\\ -]+`)
	devicePathRE = regexp.MustCompile(`(?i)\\\\[.?]\\[^\s]+`)
	uncPathRE    = regexp.MustCompile(`\\\\[^\s]+`)
	winAbsPathRE = regexp.MustCompile(`(?i)[A-Z]:\\[\w.\\ -]{2,}`)
	absPathRE    = regexp.MustCompile(`/[\w./-]{2,}`)
)

// SanitizeStackTrace redacts filesystem paths, usernames, and home
// directories from a multi-line trace under strict size bounds. Processing
// order is fixed: hard input cap, per-line cap, control stripping, path
// masking, frame truncation. Each step is bounded before the next runs.
func SanitizeStackTrace(trace string, cfg *TraceConfig) string {
	cfg = cfg.orDefaults()

	// 1. Hard cap on the whole input before anything else touches it.
	truncated := false
	if len(trace) > maxTraceBytes {
		trace = trace[:maxTraceBytes]
		truncated = true
	}

	lines := strings.Split(trace, "\n")
	out := make([]string, 0, min(len(lines), cfg.MaxFrames+1))
	frames := 0
	for i, line := range lines {
		// 2. Per-line cap before any pattern sees the line.
		if len(line) > cfg.MaxLineLength {
			line, _ = truncateString(line, cfg.MaxLineLength)
		}

		// 3. Control characters and escape sequences.
		line = stripControlChars(line)

		isFrame := i > 0
		if isFrame {
			if cfg.Detail == TraceDetailNone {
				continue
			}
			// 5. Depth truncation: only the first MaxFrames frames survive.
			if frames >= cfg.MaxFrames {
				out = append(out, truncationMarker)
				break
			}
			frames++
		}

		// 4. Path redaction, skipped only for raw detail.
		if cfg.RedactFilePaths && cfg.Detail != TraceDetailRaw {
			line = redactPaths(line)
		}
		out = append(out, line)
	}

	result := strings.Join(out, "\n")
	if truncated && !isTruncated(result) {
		result += "\n" + truncationMarker
	}
	return result
}

// redactPaths masks filesystem locations with fixed placeholders. No
// replacement starts with a path separator, so running the result through
// again changes nothing.
func redactPaths(line string) string {
	line = homeDirRE.ReplaceAllString(line, "[home]/[user]")
	line = winHomeDirRE.ReplaceAllString(line, `[home]\[user]`)
	line = devicePathRE.ReplaceAllString(line, "[device]")
	line = uncPathRE.ReplaceAllString(line, "[share]")
	line = winAbsPathRE.ReplaceAllString(line, "[path]")
	line = absPathRE.ReplaceAllString(line, "[path]")
	return line
}

// stripControlChars removes ANSI escape sequences and control characters
// other than tab.
func stripControlChars(line string) string {
	line = ansiEscapeRE.ReplaceAllString(line, "")
	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		if r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || !utf8Printable(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func utf8Printable(r rune) bool {
	return unicode.IsPrint(r) || unicode.IsSpace(r)
}

// TraceRiskLevel classifies the overall sensitivity of a trace.
type TraceRiskLevel int

const (
	TraceRiskLow TraceRiskLevel = iota
	TraceRiskMedium
	TraceRiskHigh
)

// String returns the risk level name.
func (l TraceRiskLevel) String() string {
	switch l {
	case TraceRiskLow:
		return "low"
	case TraceRiskMedium:
		return "medium"
	case TraceRiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// TraceFinding is one sensitive pattern located in a trace. The excerpt is
// truncated before it enters the report, so the report cannot re-introduce
// the size problem it describes.
type TraceFinding struct {
	Line    int
	Pattern string
	Excerpt string
}

// SecurityReport is the read-only analysis of a stack trace.
type SecurityReport struct {
	RiskLevel TraceRiskLevel
	Findings  []TraceFinding
}

// traceSensitivePatterns name what AnalyzeStackTrace looks for beyond the
// shared sensitive-value rules.
var traceSensitivePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"home-directory", homeDirRE},
	{"windows-home-directory", winHomeDirRE},
	{"unc-path", uncPathRE},
	{"absolute-path", absPathRE},
}

// AnalyzeStackTrace inspects a trace without modifying it, returning a risk
// level and the sensitive patterns found. The same bounded-input discipline
// as SanitizeStackTrace applies.
func AnalyzeStackTrace(trace string) SecurityReport {
	if len(trace) > maxTraceBytes {
		trace = trace[:maxTraceBytes]
	}

	var report SecurityReport
	sensitiveHits := 0
	for i, line := range strings.Split(trace, "\n") {
		if len(line) > maxTraceLineLength {
			line = line[:maxTraceLineLength]
		}
		for _, p := range traceSensitivePatterns {
			if loc := p.re.FindStringIndex(line); loc != nil {
				excerpt, _ := truncateString(line[loc[0]:loc[1]], maxExcerptLength)
				report.Findings = append(report.Findings, TraceFinding{
					Line:    i + 1,
					Pattern: p.name,
					Excerpt: excerpt,
				})
			}
		}
		if Matches(line, CategorySensitiveValue) {
			sensitiveHits++
			excerpt, _ := truncateString(line, maxExcerptLength)
			report.Findings = append(report.Findings, TraceFinding{
				Line:    i + 1,
				Pattern: "sensitive-value",
				Excerpt: excerpt,
			})
		}
	}

	switch {
	case sensitiveHits > 0:
		report.RiskLevel = TraceRiskHigh
	case len(report.Findings) > 0:
		report.RiskLevel = TraceRiskMedium
	default:
		report.RiskLevel = TraceRiskLow
	}
	return report
}
