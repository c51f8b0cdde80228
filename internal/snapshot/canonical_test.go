package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", NewInt(42), "42"},
		{"negative int", NewInt(-100), "-100"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array of ints", Array{NewInt(1), NewInt(2), NewInt(3)}, "[1,2,3]"},
		{"sorted keys", Object{"zebra": NewInt(1), "alpha": NewInt(2)}, `{"alpha":2,"zebra":1}`},
		{"nested sorted keys", Object{"z": Object{"b": NewInt(1), "a": NewInt(2)}, "a": NewInt(3)}, `{"a":3,"z":{"a":2,"b":1}}`},
		{"no html escaping", String("<a&b>"), `"<a&b>"`},
		{"control chars", String("a\nb\t\u0001"), `"a\nb\t\u0001"`},
		{"quote and backslash", String(`"\`), `"\"\\"`},
		{"line separator literal", String("\u2028"), "\"\u2028\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "é" as e + combining acute (NFD) normalizes to U+00E9.
	decomposed := String("e\u0301")
	composed := String("\u00e9")

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))

	// Marshal keeps the original bytes.
	raw, err := Marshal(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"e\u0301\"", string(raw))
}

func TestMarshal_RejectsAbsent(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(Object{"a": nil})
	assert.Error(t, err)
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	inputs := []string{
		`null`,
		`{"title":"a","tags":["x","y"],"count":3,"ratio":0.5,"done":false,"parent":null}`,
		`[1,[2,[3,{}]]]`,
		`{"big":9223372036854775807}`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			v, err := Unmarshal([]byte(in))
			require.NoError(t, err)

			out, err := Marshal(v)
			require.NoError(t, err)

			back, err := Unmarshal(out)
			require.NoError(t, err)
			assert.True(t, Equal(v, back))
		})
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":1} {"b":2}`, `[1,]`} {
		t.Run(in, func(t *testing.T) {
			_, err := Unmarshal([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestObjectJSONInterop(t *testing.T) {
	type wrapper struct {
		State Object `json:"state"`
	}

	data, err := json.Marshal(wrapper{State: Object{"b": NewInt(1), "a": String("x")}})
	require.NoError(t, err)
	assert.Equal(t, `{"state":{"a":"x","b":1}}`, string(data))

	var back wrapper
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(Object{"b": NewInt(1), "a": String("x")}, back.State))
}

func TestHash(t *testing.T) {
	a := Object{"x": NewInt(1), "y": Array{String("z")}}
	b := Object{"y": Array{String("z")}, "x": NewInt(1)}

	ha, err := Hash(a)
	require.NoError(t, err)
	assert.Len(t, ha, 64)
	assert.Equal(t, ha, MustHash(b))
	assert.NotEqual(t, ha, MustHash(Object{"x": NewInt(2)}))

	_, err = Hash(nil)
	assert.Error(t, err)
}
