// Package security implements the sanitization and validation engine that
// turns untrusted runtime data into values safe to log, persist, or forward.
//
// # Overview
//
// The engine defends against:
//   - Command injection in CLI arguments (CWE-78)
//   - Path traversal in user-supplied paths (CWE-22)
//   - Prototype-pollution style key smuggling in decoded objects (CWE-1321)
//   - Sensitive-value disclosure (API keys, credentials, tokens) in logs
//   - Algorithmic-complexity attacks via pathological strings (ReDoS, CWE-1333)
//
// # Components
//
// Pattern Library: immutable, process-wide detection rules. Query with
// Matches or Analyze; every input is length-capped before any pattern runs.
//
//	report := security.Analyze(userInput)
//	if report.RiskScore > 50 { ... }
//
// Input Validator: validates one of a closed set of input kinds against the
// pattern library plus kind-specific rules.
//
//	result := security.ValidateInput(name, security.KindName, nil)
//	if !result.Valid {
//	    return fmt.Errorf("invalid name: %v", result.Violations)
//	}
//
// Object Sanitizer: cycle-safe recursive sanitizer for arbitrary values.
//
//	res := security.SanitizeObject(payload, "", nil)
//	logger.Info("payload", "value", res.Sanitized)
//
// Stack Trace Sanitizer: redacts paths, usernames, and home directories from
// multi-line traces under strict size and time bounds.
//
// Error Context Sanitizer: composes the object and trace sanitizers into a
// redacted, size-bounded, uniquely-identified error payload.
//
//	report := security.SanitizeErrorContext(err, ctx, nil)
//	payload := security.CreateSafeErrorForForwarding(err, ctx, nil)
//
// # Design Philosophy
//
//   - Fail-secure: when in doubt, redact or remove
//   - Structured results: violations and warnings are returned, not thrown;
//     the only hard failures are ErrUnsafeOption and ErrInjection
//   - Bounded everything: inputs are length-capped before pattern matching,
//     traversal is depth- and count-capped, and wall-clock budgets degrade
//     to truncation instead of aborting
//   - Deterministic: the result cache is an optimization only; disabling it
//     never changes output, and ResetCache makes tests reproducible
//
// # Error Handling
//
// Validators intentionally both log and return findings. Security events need
// an audit trail (via logging, throttled to avoid log flooding) and must also
// reach callers so they can deny the operation.
package security
