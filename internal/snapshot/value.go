package snapshot

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Kind identifies the concrete type of a Value.
type Kind int

const (
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a sealed interface over canonical document values.
// Only Null, Bool, Number, String, Object and Array implement it.
type Value interface {
	snapshotValue() // Sealed
	Kind() Kind
}

// KindOf returns the Kind of v, or KindAbsent for a nil Value.
func KindOf(v Value) Kind {
	if v == nil {
		return KindAbsent
	}
	return v.Kind()
}

// Null is an explicit JSON null. It is a present value, unlike a nil Value.
type Null struct{}

func (Null) snapshotValue() {}
func (Null) Kind() Kind     { return KindNull }

// Bool is a boolean value.
type Bool bool

func (Bool) snapshotValue() {}
func (Bool) Kind() Kind     { return KindBool }

// String is a string value.
type String string

func (String) snapshotValue() {}
func (String) Kind() Kind     { return KindString }

// Number holds the canonical decimal text of a JSON number.
// Build it with NewInt, NewFloat or ParseNumber so that equal numbers
// always carry equal text.
type Number string

func (Number) snapshotValue() {}
func (Number) Kind() Kind     { return KindNumber }

// Int64 returns the number as an int64 if it is integral and in range.
func (n Number) Int64() (int64, bool) {
	i, err := strconv.ParseInt(string(n), 10, 64)
	return i, err == nil
}

// Float64 returns the number as a float64.
func (n Number) Float64() float64 {
	f, _ := strconv.ParseFloat(string(n), 64)
	return f
}

// NewInt creates a Number from an integer.
func NewInt(i int64) Number {
	return Number(strconv.FormatInt(i, 10))
}

// NewFloat creates a Number from a float. Integral floats are stored as
// integers so that 1 and 1.0 compare equal. NaN and infinities are rejected.
func NewFloat(f float64) (Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("number %v is not representable in JSON", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return NewInt(int64(f)), nil
	}
	return Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// ParseNumber normalizes JSON number text into a Number.
func ParseNumber(s string) (Number, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewInt(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %w", s, err)
	}
	return NewFloat(f)
}

// Object is a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) snapshotValue() {}
func (Object) Kind() Kind     { return KindObject }

// Array is an ordered list of values.
type Array []Value

func (Array) snapshotValue() {}
func (Array) Kind() Kind     { return KindArray }

// Pair is a key-value pair for typed Object construction.
type Pair struct {
	Key   string
	Value Value
}

// O is a shorthand for Pair.
// Example: NewObject(O("title", String("a")), O("done", Bool(false)))
func O(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewObject creates an Object from key-value pairs.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// NewArray creates an Array from values.
func NewArray(vals ...Value) Array {
	return Array(vals)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's native string ordering compares UTF-8 bytes, which differs for
// characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareKeys)
	return keys
}

// CompareKeys compares two object keys by UTF-16 code units.
func CompareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Clone returns a deep copy of v. Clone(nil) is nil.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	default:
		// Scalars are immutable.
		return v
	}
}

// Equal reports whether a and b are structurally equal.
// Object key order is irrelevant. Two absent values are equal; an absent
// value never equals Null.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && numbersEqual(av, bv)
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, exists := bv[k]
			if !exists || !Equal(elem, other) {
				return false
			}
		}
		return true
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		panic(fmt.Sprintf("snapshot: unknown Value type %T", a))
	}
}

// numbersEqual compares numbers by their normalized text. Numbers built
// through the constructors are already normalized; the fallback covers
// literals like Number("1.0").
func numbersEqual(a, b Number) bool {
	if a == b {
		return true
	}
	na, errA := ParseNumber(string(a))
	nb, errB := ParseNumber(string(b))
	if errA != nil || errB != nil {
		return false
	}
	return na == nb
}
