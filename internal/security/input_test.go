package security

import (
	"errors"
	"strings"
	"testing"
)

func hasViolationKind(violations []Violation, kind string) bool {
	for _, v := range violations {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		opts          *Options
		wantValid     bool
		wantSanitized string
		wantKinds     []string
	}{
		{
			name:          "clean name",
			input:         "my-project",
			wantValid:     true,
			wantSanitized: "my-project",
		},
		{
			name:          "dots and digits",
			input:         "app.v2",
			wantValid:     true,
			wantSanitized: "app.v2",
		},
		{
			name:          "uppercase and space and punctuation",
			input:         "My Project!",
			wantValid:     false,
			wantSanitized: "my-project",
			wantKinds:     []string{"invalid-case", "invalid-characters"},
		},
		{
			name:      "too short",
			input:     "a",
			wantValid: false,
			wantKinds: []string{"invalid-length"},
		},
		{
			name:      "too long",
			input:     strings.Repeat("a", 300),
			wantValid: false,
			wantKinds: []string{"invalid-length"},
		},
		{
			name:          "leading separator",
			input:         ".hidden",
			wantValid:     false,
			wantSanitized: "hidden",
			wantKinds:     []string{"edge-separator"},
		},
		{
			name:          "doubled separator",
			input:         "foo..bar",
			wantValid:     false,
			wantSanitized: "foo.bar",
			wantKinds:     []string{"doubled-separator"},
		},
		{
			name:          "zero width characters",
			input:         "my​project",
			wantValid:     false,
			wantSanitized: "myproject",
			wantKinds:     []string{"zero-width-characters"},
		},
		{
			name:      "unicode rejected by default",
			input:     "café-app",
			wantValid: false,
			wantKinds: []string{"invalid-characters"},
		},
		{
			name:      "unicode allowed when opted in",
			input:     "café-app",
			opts:      &Options{AllowUnicodeNames: true},
			wantValid: true,
		},
		{
			name:      "embedded injection",
			input:     "name; rm -rf /",
			wantValid: false,
			wantKinds: []string{"command-injection:shell-metacharacters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, KindName, tt.opts)
			if result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (violations: %+v)", result.Valid, tt.wantValid, result.Violations)
			}
			if tt.wantSanitized != "" && result.Sanitized != tt.wantSanitized {
				t.Errorf("Sanitized = %q, want %q", result.Sanitized, tt.wantSanitized)
			}
			for _, kind := range tt.wantKinds {
				if !hasViolationKind(result.Violations, kind) {
					t.Errorf("missing violation %q in %+v", kind, result.Violations)
				}
			}
			if tt.wantValid && len(result.Violations) != 0 {
				t.Errorf("valid name carries violations: %+v", result.Violations)
			}
		})
	}
}

// Names are held to an all-rules-pass standard: even a low-severity finding
// invalidates, while other kinds tolerate low findings.
func TestValidateNameStricterThanOtherKinds(t *testing.T) {
	result := ValidateInput("MyProject", KindName, nil)
	if result.Valid {
		t.Error("uppercase-only name should be invalid despite low severity")
	}
	if maxSeverity(result.Violations) != SeverityLow {
		t.Errorf("expected only low-severity violations, got %+v", result.Violations)
	}
	if result.RiskScore == 0 {
		t.Error("expected a nonzero risk score")
	}
}

// The length cut can land right after a separator; the sanitized form must
// still be free of edge separators.
func TestSanitizeNameTruncationEdges(t *testing.T) {
	name := strings.Repeat("a", maxNameLength-1) + ".suffix"
	got := sanitizeName(name)
	if len(got) > maxNameLength {
		t.Fatalf("sanitized length %d exceeds cap %d", len(got), maxNameLength)
	}
	if trimmed := strings.Trim(got, "._-"); trimmed != got {
		t.Errorf("truncated name has edge separators: %q", got)
	}
	if want := strings.Repeat("a", maxNameLength-1); got != want {
		t.Errorf("got %q, want the separator trimmed off the cut", got)
	}
}

func TestValidatePackageManager(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		opts          *Options
		wantValid     bool
		wantSanitized string
		wantSeverity  Severity
	}{
		{"known manager", "npm", nil, true, "npm", -1},
		{"normalized whitespace and case", "  NPM  ", nil, true, "npm", -1},
		{"deno accepted", "deno", nil, true, "deno", -1},
		{"unknown manager", "evil-pm", nil, false, "", SeverityHigh},
		{"unknown manager strict", "evil-pm", &Options{Strict: true}, false, "", SeverityCritical},
		{"injection attempt", "npm; rm -rf /", nil, false, "", SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, KindPackageManager, tt.opts)
			if result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (violations: %+v)", result.Valid, tt.wantValid, result.Violations)
			}
			if result.Sanitized != tt.wantSanitized {
				t.Errorf("Sanitized = %q, want %q", result.Sanitized, tt.wantSanitized)
			}
			if tt.wantSeverity >= 0 && maxSeverity(result.Violations) != tt.wantSeverity {
				t.Errorf("max severity = %s, want %s", maxSeverity(result.Violations), tt.wantSeverity)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		opts      *Options
		wantValid bool
		wantKinds []string
	}{
		{
			name:      "relative path",
			input:     "src/main.go",
			wantValid: true,
		},
		{
			name:      "traversal",
			input:     "../../../etc/passwd",
			wantValid: false,
			wantKinds: []string{"path-traversal", "root-escape"},
		},
		{
			name:      "absolute path rejected by default",
			input:     "/opt/data/file.txt",
			wantValid: false,
			wantKinds: []string{"absolute-path"},
		},
		{
			name:      "absolute path allowed when opted in",
			input:     "/opt/data/file.txt",
			opts:      &Options{AllowAbsolutePaths: true},
			wantValid: true,
		},
		{
			name:      "sensitive path blocked despite opt-ins",
			input:     "/etc/passwd",
			opts:      &Options{AllowAbsolutePaths: true, AllowTraversal: true},
			wantValid: false,
			wantKinds: []string{"sensitive-path"},
		},
		{
			name:      "credential directory",
			input:     "home/user/.ssh/id_rsa",
			wantValid: false,
			wantKinds: []string{"sensitive-path"},
		},
		{
			name:      "null byte",
			input:     "file\x00.txt",
			wantValid: false,
			wantKinds: []string{"null-byte"},
		},
		{
			name:      "traversal allowed when opted in",
			input:     "../sibling/file.txt",
			opts:      &Options{AllowTraversal: true},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, KindPath, tt.opts)
			if result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (violations: %+v)", result.Valid, tt.wantValid, result.Violations)
			}
			for _, kind := range tt.wantKinds {
				if !hasViolationKind(result.Violations, kind) {
					t.Errorf("missing violation %q in %+v", kind, result.Violations)
				}
			}
			if !tt.wantValid && result.Sanitized != "" {
				t.Errorf("invalid path produced sanitized form %q", result.Sanitized)
			}
		})
	}
}

func TestValidatePathRootResolution(t *testing.T) {
	result := ValidateInput("docs/guide.md", KindPath, &Options{Root: "/srv/project"})
	if !result.Valid {
		t.Fatalf("expected valid, got violations: %+v", result.Violations)
	}
	if result.Sanitized != "/srv/project/docs/guide.md" {
		t.Errorf("Sanitized = %q, want resolution under the root", result.Sanitized)
	}
}

func TestValidateShellArg(t *testing.T) {
	t.Run("clean argument", func(t *testing.T) {
		result := ValidateInput("--save-dev", KindShellArg, nil)
		if !result.Valid || result.Sanitized != "--save-dev" {
			t.Errorf("got Valid=%v Sanitized=%q", result.Valid, result.Sanitized)
		}
	})

	t.Run("substitution stripped in lenient mode", func(t *testing.T) {
		result := ValidateInput("`whoami`", KindShellArg, nil)
		if result.Valid {
			t.Error("expected invalid")
		}
		if result.Sanitized != "whoami" {
			t.Errorf("Sanitized = %q, want %q", result.Sanitized, "whoami")
		}
		if len(result.Warnings) == 0 {
			t.Error("expected a warning about removed content")
		}
	})

	t.Run("strict mode yields no sanitized form", func(t *testing.T) {
		result := ValidateInput("`whoami`", KindShellArg, &Options{Strict: true})
		if result.Valid || result.Sanitized != "" {
			t.Errorf("got Valid=%v Sanitized=%q", result.Valid, result.Sanitized)
		}
	})

	t.Run("oversized argument bounded before analysis", func(t *testing.T) {
		result := ValidateInput(strings.Repeat("a", maxShellArgLength+1), KindShellArg, nil)
		if result.Valid {
			t.Error("expected invalid")
		}
		if !hasViolationKind(result.Violations, "oversized-argument") {
			t.Errorf("missing oversized-argument violation: %+v", result.Violations)
		}
	})
}

func TestSanitizeCommandArgs(t *testing.T) {
	t.Run("clean vector passes through", func(t *testing.T) {
		args := []string{"install", "--save-dev", "typescript"}
		got, err := SanitizeCommandArgs(args, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 || got[0] != "install" || got[1] != "--save-dev" || got[2] != "typescript" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("lenient mode drops hollow tokens", func(t *testing.T) {
		got, err := SanitizeCommandArgs([]string{"build", "; rm -rf /"}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0] != "build" {
			t.Errorf("got %v, want [build]", got)
		}
	})

	t.Run("strict mode rejects the vector", func(t *testing.T) {
		got, err := SanitizeCommandArgs([]string{"build", "; rm -rf /"}, &Options{Strict: true})
		if !errors.Is(err, ErrInjection) {
			t.Fatalf("expected ErrInjection, got %v", err)
		}
		if got != nil {
			t.Errorf("expected nil result on rejection, got %v", got)
		}
		if !strings.Contains(err.Error(), "argument 1") {
			t.Errorf("error should name the offending index: %v", err)
		}
	})

	t.Run("lenient mode keeps stripped tokens with substance", func(t *testing.T) {
		got, err := SanitizeCommandArgs([]string{"echo", "hello; whoami"}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[1] != "hello whoami" {
			t.Errorf("got %v", got)
		}
	})
}

func TestDivergesSignificantly(t *testing.T) {
	tests := []struct {
		a, b int
		want bool
	}{
		{10, 10, false},
		{10, 11, false}, // ordinary accent difference
		{10, 12, false},
		{20, 10, true}, // doubled length under compatibility folding
		{5, 0, true},
	}
	for _, tt := range tests {
		if got := divergesSignificantly(tt.a, tt.b); got != tt.want {
			t.Errorf("divergesSignificantly(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
