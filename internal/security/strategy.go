package security

// Strategy is the rewrite applied to a node. Selection is a pure function of
// (sanitization level, classification, violations at the node) plus any
// configured per-classification override.
type Strategy int

const (
	StrategyPreserve Strategy = iota
	StrategySanitize
	StrategyRedact
	StrategyRemove
	StrategyTruncate
	StrategyFlatten
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyPreserve:
		return "preserve"
	case StrategySanitize:
		return "sanitize"
	case StrategyRedact:
		return "redact"
	case StrategyRemove:
		return "remove"
	case StrategyTruncate:
		return "truncate"
	case StrategyFlatten:
		return "flatten"
	default:
		return "unknown"
	}
}

// Level sets how aggressively the object sanitizer rewrites.
type Level int

const (
	LevelMinimal Level = iota
	LevelStandard
	LevelStrict
	LevelParanoid
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	case LevelStrict:
		return "strict"
	case LevelParanoid:
		return "paranoid"
	default:
		return "unknown"
	}
}

// ParseLevel maps a configuration string to a Level, defaulting to standard.
func ParseLevel(s string) Level {
	switch s {
	case "minimal":
		return LevelMinimal
	case "strict":
		return LevelStrict
	case "paranoid":
		return LevelParanoid
	default:
		return LevelStandard
	}
}

// selectStrategy resolves the strategy for a node. Precedence:
//  1. a critical violation at the node forces remove
//  2. a configured per-classification override
//  3. a high violation forces redact at strict and paranoid levels
//  4. the (level x classification) decision table
func selectStrategy(cfg *ObjectConfig, class Classification, nodeViolations []Violation) Strategy {
	if hasSeverityAtLeast(nodeViolations, SeverityCritical) {
		return StrategyRemove
	}
	if override, ok := cfg.Overrides[class]; ok {
		return override
	}
	if cfg.Level >= LevelStrict && hasSeverityAtLeast(nodeViolations, SeverityHigh) {
		return StrategyRedact
	}
	return strategyTable(cfg.Level, class)
}

// strategyTable is the per-level default. Exhaustive over classifications so
// adding a tag without a row is a compile-visible omission.
func strategyTable(level Level, class Classification) Strategy {
	switch level {
	case LevelMinimal:
		// Preserve almost everything; only callables and cycles go.
		switch class {
		case ClassCallable, ClassCircular:
			return StrategyRemove
		case ClassRecord, ClassSequence:
			return StrategySanitize
		case ClassPrimitive, ClassDate, ClassPattern, ClassInstance, ClassBinary, ClassUnknown:
			return StrategyPreserve
		}
	case LevelStandard:
		switch class {
		case ClassPrimitive, ClassRecord, ClassSequence:
			return StrategySanitize
		case ClassDate, ClassPattern:
			return StrategyPreserve
		case ClassInstance:
			return StrategyFlatten
		case ClassBinary:
			return StrategyTruncate
		case ClassCallable, ClassCircular, ClassUnknown:
			return StrategyRemove
		}
	case LevelStrict:
		switch class {
		case ClassPrimitive, ClassRecord, ClassSequence:
			return StrategySanitize
		case ClassDate:
			return StrategyPreserve
		case ClassPattern, ClassInstance, ClassBinary:
			return StrategyRedact
		case ClassCallable, ClassCircular, ClassUnknown:
			return StrategyRemove
		}
	case LevelParanoid:
		// Anything that is not primitive, record, or sequence is removed.
		switch class {
		case ClassPrimitive, ClassRecord, ClassSequence:
			return StrategySanitize
		case ClassDate, ClassPattern, ClassInstance, ClassBinary,
			ClassCallable, ClassCircular, ClassUnknown:
			return StrategyRemove
		}
	}
	return StrategyRemove
}
