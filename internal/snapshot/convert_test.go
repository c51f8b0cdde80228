package snapshot

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Title    string   `json:"title"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
}

type section struct {
	Name  string `json:"name"`
	Items []item `json:"items"`
}

func TestCanonicalize_Struct(t *testing.T) {
	doc := section{Name: "Backlog", Items: []item{{Title: "a", Priority: 2, Tags: []string{"ui"}}}}

	v, err := Canonicalize(doc)
	require.NoError(t, err)

	want := Object{
		"name": String("Backlog"),
		"items": Array{Object{
			"title":    String("a"),
			"priority": NewInt(2),
			"tags":     Array{String("ui")},
		}},
	}
	assert.True(t, Equal(want, v), "got %#v", v)
}

func TestCanonicalize_GenericTree(t *testing.T) {
	doc := map[string]any{
		"title": "a",
		"n":     3,
		"f":     1.5,
		"none":  nil,
		"list":  []any{true, json.Number("10")},
	}

	v, err := Canonicalize(doc)
	require.NoError(t, err)

	want := Object{
		"title": String("a"),
		"n":     NewInt(3),
		"f":     Number("1.5"),
		"none":  Null{},
		"list":  Array{Bool(true), NewInt(10)},
	}
	assert.True(t, Equal(want, v))
}

func TestCanonicalize_RawJSON(t *testing.T) {
	v, err := Canonicalize(json.RawMessage(`{"title":"a"}`))
	require.NoError(t, err)
	assert.True(t, Equal(Object{"title": String("a")}, v))

	v, err = Canonicalize([]byte(`[1]`))
	require.NoError(t, err)
	assert.True(t, Equal(Array{NewInt(1)}, v))
}

func TestCanonicalize_ValueIsCopied(t *testing.T) {
	orig := Object{"a": Array{NewInt(1)}}
	v, err := Canonicalize(orig)
	require.NoError(t, err)

	orig["a"].(Array)[0] = NewInt(99)
	assert.True(t, Equal(Object{"a": Array{NewInt(1)}}, v))
}

func TestCanonicalize_Deterministic(t *testing.T) {
	doc := map[string]any{"b": 1, "a": []any{"x", map[string]any{"d": 2, "c": 3}}}

	first := MustCanonicalize(doc)
	for i := 0; i < 10; i++ {
		assert.True(t, Equal(first, MustCanonicalize(doc)))
		assert.Equal(t, MustHash(first), MustHash(MustCanonicalize(doc)))
	}
}

func TestCanonicalize_CyclicMap(t *testing.T) {
	m := map[string]any{}
	m["self"] = m

	_, err := Canonicalize(m)
	assert.ErrorIs(t, err, ErrCyclic)
	assert.Panics(t, func() { MustCanonicalize(m) })
}

func TestCanonicalize_CyclicSlice(t *testing.T) {
	s := []any{nil}
	s[0] = s

	_, err := Canonicalize(s)
	assert.ErrorIs(t, err, ErrCyclic)
}

type node struct {
	Name string `json:"name"`
	Next *node  `json:"next"`
}

func TestCanonicalize_CyclicStruct(t *testing.T) {
	n := &node{Name: "a"}
	n.Next = n

	_, err := Canonicalize(n)
	assert.ErrorIs(t, err, ErrCyclic)
}

func TestCanonicalize_SharedSubtreeIsNotCyclic(t *testing.T) {
	shared := map[string]any{"k": "v"}
	doc := map[string]any{"a": shared, "b": shared}

	v, err := Canonicalize(doc)
	require.NoError(t, err)
	assert.True(t, Equal(Object{"a": Object{"k": String("v")}, "b": Object{"k": String("v")}}, v))
}

func TestCanonicalize_RejectsNaN(t *testing.T) {
	_, err := Canonicalize(math.NaN())
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	v := Object{"name": String("Backlog"), "items": Array{Object{"title": String("a"), "priority": NewInt(2)}}}

	got, err := Decode[section](v)
	require.NoError(t, err)
	assert.Equal(t, section{Name: "Backlog", Items: []item{{Title: "a", Priority: 2}}}, got)
}
