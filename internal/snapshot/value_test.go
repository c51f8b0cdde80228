package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want Kind
	}{
		{"absent", nil, KindAbsent},
		{"null", Null{}, KindNull},
		{"bool", Bool(true), KindBool},
		{"number", NewInt(1), KindNumber},
		{"string", String("x"), KindString},
		{"object", Object{}, KindObject},
		{"array", Array{}, KindArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.v))
			assert.Equal(t, tt.name, tt.want.String())
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want Number
	}{
		{"0", "0"},
		{"-0", "0"},
		{"42", "42"},
		{"1.0", "1"},
		{"1e2", "100"},
		{"1.5", "1.5"},
		{"-2.25", "-2.25"},
		{"9223372036854775807", "9223372036854775807"},
		{"0.1", "0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNumber(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNumberRejectsGarbage(t *testing.T) {
	_, err := ParseNumber("abc")
	assert.Error(t, err)
}

func TestNumberAccessors(t *testing.T) {
	n := NewInt(7)
	i, ok := n.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)
	assert.Equal(t, 7.0, n.Float64())

	f, err := NewFloat(2.5)
	require.NoError(t, err)
	_, ok = f.Int64()
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"both absent", nil, nil, true},
		{"absent vs null", nil, Null{}, false},
		{"null vs null", Null{}, Null{}, true},
		{"bool", Bool(true), Bool(true), true},
		{"bool differs", Bool(true), Bool(false), false},
		{"number normalized", Number("1.0"), NewInt(1), true},
		{"number differs", NewInt(1), NewInt(2), false},
		{"string vs number", String("1"), NewInt(1), false},
		{"object key order", NewObject(O("a", NewInt(1)), O("b", NewInt(2))), NewObject(O("b", NewInt(2)), O("a", NewInt(1))), true},
		{"object missing key", Object{"a": Null{}}, Object{"b": Null{}}, false},
		{"object extra key", Object{"a": Null{}}, Object{"a": Null{}, "b": Null{}}, false},
		{"array order matters", Array{NewInt(1), NewInt(2)}, Array{NewInt(2), NewInt(1)}, false},
		{"nested", Object{"x": Array{Object{"y": String("z")}}}, Object{"x": Array{Object{"y": String("z")}}}, true},
		{"empty object vs array", Object{}, Array{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a))
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := Object{"list": Array{Object{"n": NewInt(1)}}}
	cp := Clone(orig).(Object)

	cp["list"].(Array)[0].(Object)["n"] = NewInt(2)

	assert.Equal(t, NewInt(1), orig["list"].(Array)[0].(Object)["n"])
	assert.Nil(t, Clone(nil))
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	obj := Object{
		"\uE000": NewInt(1),
		"𐀀":      NewInt(2),
		"b":      NewInt(3),
		"a":      NewInt(4),
	}

	assert.Equal(t, []string{"a", "b", "𐀀", "\uE000"}, obj.SortedKeys())
}

func TestCompareKeys_Prefix(t *testing.T) {
	assert.Equal(t, -1, CompareKeys("ab", "abc"))
	assert.Equal(t, 1, CompareKeys("abc", "ab"))
	assert.Equal(t, 0, CompareKeys("abc", "abc"))
}
