package security

import (
	"reflect"
	"regexp"
	"time"
)

// Classification tags the shape of a value. The tag is assigned once during
// traversal and drives strategy selection through an exhaustive switch.
type Classification int

const (
	ClassPrimitive Classification = iota
	ClassRecord
	ClassSequence
	ClassDate
	ClassPattern
	ClassCallable
	ClassInstance
	ClassBinary
	ClassCircular
	ClassUnknown
)

// String returns the classification tag name.
func (c Classification) String() string {
	switch c {
	case ClassPrimitive:
		return "primitive"
	case ClassRecord:
		return "record"
	case ClassSequence:
		return "sequence"
	case ClassDate:
		return "date"
	case ClassPattern:
		return "pattern"
	case ClassCallable:
		return "callable"
	case ClassInstance:
		return "class-instance"
	case ClassBinary:
		return "binary"
	case ClassCircular:
		return "circular"
	case ClassUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// ancestorSet tracks the identities of containers currently open on the
// traversal path. Entries are added before descending into a container and
// removed on unwind, so the same node reachable via two non-cyclic paths is
// sanitized independently while true cycles classify as circular.
type ancestorSet map[uintptr]struct{}

func (a ancestorSet) contains(id uintptr) bool {
	_, ok := a[id]
	return ok
}

// identity returns a stable identity for container kinds, or 0 when the
// value has no meaningful pointer identity (arrays, plain structs).
func identity(v reflect.Value) uintptr {
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Func:
		if v.IsNil() {
			return 0
		}
		return v.Pointer()
	default:
		return 0
	}
}

// classify assigns the classification tag for a value. Order matters and
// mirrors the engine's contract: nil-like first, then primitives, callables,
// special leaf types, the cycle check, and finally record versus instance
// versus unknown.
func classify(value any, ancestors ancestorSet) Classification {
	if value == nil {
		return ClassPrimitive
	}

	switch value.(type) {
	case time.Time, *time.Time:
		return ClassDate
	case *regexp.Regexp:
		return ClassPattern
	case []byte:
		return ClassBinary
	}

	v := reflect.ValueOf(value)

	// Unwrap pointers, carrying the cycle check along: a pointer already on
	// the ancestor chain is itself the cycle.
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ClassPrimitive
		}
		if ancestors.contains(v.Pointer()) {
			return ClassCircular
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return ClassPrimitive
	case reflect.Func:
		return ClassCallable
	case reflect.Slice, reflect.Array:
		if id := identity(v); id != 0 && ancestors.contains(id) {
			return ClassCircular
		}
		return ClassSequence
	case reflect.Map:
		if id := identity(v); id != 0 && ancestors.contains(id) {
			return ClassCircular
		}
		return ClassRecord
	case reflect.Struct:
		return ClassInstance
	default:
		// chan, complex, unsafe pointer and friends
		return ClassUnknown
	}
}
