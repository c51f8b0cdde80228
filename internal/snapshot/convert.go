package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// ErrCyclic is returned when a document refers to itself.
// Cyclic documents are a caller bug, not a recoverable condition.
var ErrCyclic = errors.New("cyclic document")

// Canonicalize converts a live document into a Value tree.
//
// Accepted inputs:
//   - a Value (deep-copied)
//   - json.RawMessage or []byte holding JSON text
//   - JSON-shaped Go trees: map[string]any, []any, string, bool, numbers, nil
//   - anything else encoding/json can marshal (struct tags are honored)
//
// The result shares no memory with doc.
func Canonicalize(doc any) (Value, error) {
	return convert(doc, make(map[visitKey]struct{}))
}

// MustCanonicalize is like Canonicalize but panics on error.
// Use only when the document is known to be acyclic and JSON-encodable.
func MustCanonicalize(doc any) Value {
	v, err := Canonicalize(doc)
	if err != nil {
		panic(err)
	}
	return v
}

// visitKey identifies a map or slice on the current recursion path.
type visitKey struct {
	ptr uintptr
	len int
}

func convert(doc any, visiting map[visitKey]struct{}) (Value, error) {
	switch val := doc.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return Clone(val), nil
	case json.RawMessage:
		return Unmarshal(val)
	case []byte:
		return Unmarshal(val)
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		return ParseNumber(string(val))
	case int:
		return NewInt(int64(val)), nil
	case int32:
		return NewInt(int64(val)), nil
	case int64:
		return NewInt(val), nil
	case float32:
		return NewFloat(float64(val))
	case float64:
		return NewFloat(val)
	case map[string]any:
		key := visitKey{ptr: reflect.ValueOf(val).Pointer()}
		if _, seen := visiting[key]; seen {
			return nil, ErrCyclic
		}
		visiting[key] = struct{}{}
		defer delete(visiting, key)

		obj := make(Object, len(val))
		for k, elem := range val {
			v, err := convert(elem, visiting)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = v
		}
		return obj, nil
	case []any:
		if val == nil {
			return Null{}, nil
		}
		key := visitKey{ptr: reflect.ValueOf(val).Pointer(), len: len(val)}
		if len(val) > 0 {
			if _, seen := visiting[key]; seen {
				return nil, ErrCyclic
			}
			visiting[key] = struct{}{}
			defer delete(visiting, key)
		}

		arr := make(Array, len(val))
		for i, elem := range val {
			v, err := convert(elem, visiting)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	default:
		return convertViaJSON(doc)
	}
}

// convertViaJSON handles typed documents (structs, typed maps and slices)
// by round-tripping them through encoding/json.
func convertViaJSON(doc any) (Value, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		var unsupported *json.UnsupportedValueError
		if errors.As(err, &unsupported) && strings.Contains(unsupported.Str, "cycle") {
			return nil, fmt.Errorf("%w: %v", ErrCyclic, err)
		}
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal parses JSON text into a Value.
// Numbers are decoded with UseNumber so no precision is lost.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode value: trailing data after JSON value")
	}

	return fromDecoded(raw)
}

// fromDecoded converts the output of a UseNumber json.Decoder.
func fromDecoded(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return ParseNumber(string(val))
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported decoded type: %T", v)
	}
}

// Decode materializes a typed document from a Value.
func Decode[T any](v Value) (T, error) {
	var out T
	data, err := Marshal(v)
	if err != nil {
		return out, fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}
