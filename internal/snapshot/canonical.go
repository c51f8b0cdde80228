package snapshot

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Marshal encodes v as compact JSON with object keys in canonical order.
// String contents are written as-is (no Unicode normalization), so
// Unmarshal(Marshal(v)) is Equal to v. This is the form used for stored
// payloads.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalCanonical produces RFC 8785 style canonical JSON for hashing.
// CRITICAL: This is the ONLY serialization that should be used for
// content-addressed identity.
//
// Differences from Marshal:
//  1. Strings and keys are NFC normalized
//  2. Absent values are rejected instead of silently skipped
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v Value, canonical bool) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("cannot encode absent value")
	case Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		if val == "" {
			return fmt.Errorf("empty number")
		}
		buf.WriteString(string(val))
	case String:
		writeString(buf, string(val), canonical)
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem, canonical); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k, canonical)
			buf.WriteByte(':')
			if err := encode(buf, val[k], canonical); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown Value type: %T", v)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// writeString writes a JSON string escaping only what RFC 8785 requires:
// quote, backslash and control characters. HTML characters and
// U+2028/U+2029 are written literally.
func writeString(buf *bytes.Buffer, s string, canonical bool) {
	if canonical {
		s = norm.NFC.String(s)
	}
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		b := s[i]
		if b < utf8.RuneSelf {
			switch {
			case b == '"':
				buf.WriteString(`\"`)
			case b == '\\':
				buf.WriteString(`\\`)
			case b == '\n':
				buf.WriteString(`\n`)
			case b == '\r':
				buf.WriteString(`\r`)
			case b == '\t':
				buf.WriteString(`\t`)
			case b == '\b':
				buf.WriteString(`\b`)
			case b == '\f':
				buf.WriteString(`\f`)
			case b < 0x20:
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[b>>4])
				buf.WriteByte(hexDigits[b&0xF])
			default:
				buf.WriteByte(b)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.WriteString(`�`)
		} else {
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON implements json.Marshaler for Number.
func (n Number) MarshalJSON() ([]byte, error) {
	return Marshal(n)
}

// MarshalJSON implements json.Marshaler for String.
func (s String) MarshalJSON() ([]byte, error) {
	return Marshal(s)
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
func (obj Object) MarshalJSON() ([]byte, error) {
	return Marshal(obj)
}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	return Marshal(arr)
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	o, ok := v.(Object)
	if !ok {
		return fmt.Errorf("expected object, got %s", v.Kind())
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	a, ok := v.(Array)
	if !ok {
		return fmt.Errorf("expected array, got %s", v.Kind())
	}
	*arr = a
	return nil
}
