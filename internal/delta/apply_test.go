package delta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/snapshot"
)

func TestApply_Mismatch(t *testing.T) {
	state := obj(o("title", snapshot.String("actual")))
	p := &Patch{Changes: []Change{{Path: "/title", Old: snapshot.String("expected"), New: snapshot.String("new")}}}

	_, err := Apply(state, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPatchMismatch)

	var mm *MismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, "/title", mm.Path)
	assert.Equal(t, snapshot.String("expected"), mm.Expected)
	assert.Equal(t, snapshot.String("actual"), mm.Found)
	assert.Contains(t, err.Error(), `expected "expected", found "actual"`)
}

func TestApply_MismatchOnAbsent(t *testing.T) {
	state := obj()
	p := &Patch{Changes: []Change{{Path: "/x", Old: snapshot.Null{}}}}

	_, err := Apply(state, p)
	assert.ErrorIs(t, err, ErrPatchMismatch)
	assert.Contains(t, err.Error(), "found <absent>")
}

func TestApply_AddOverExistingIsMismatch(t *testing.T) {
	state := obj(o("x", snapshot.NewInt(1)))
	p := &Patch{Changes: []Change{{Path: "/x", New: snapshot.NewInt(2)}}}

	_, err := Apply(state, p)
	assert.ErrorIs(t, err, ErrPatchMismatch)
}

func TestApply_CreatesIntermediateObjects(t *testing.T) {
	state := obj()
	p := &Patch{Changes: []Change{{Path: "/a/b/c", New: snapshot.NewInt(1)}}}

	got, err := Apply(state, p)
	require.NoError(t, err)
	assert.True(t, snapshot.Equal(obj(o("a", obj(o("b", obj(o("c", snapshot.NewInt(1))))))), got))
}

func TestApply_MissingParentWithExpectedValue(t *testing.T) {
	state := obj()
	p := &Patch{Changes: []Change{{Path: "/a/b", Old: snapshot.NewInt(1), New: snapshot.NewInt(2)}}}

	_, err := Apply(state, p)
	assert.ErrorIs(t, err, ErrPatchMismatch)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	state := obj(
		o("meta", obj(o("a", snapshot.NewInt(1)))),
		o("list", snapshot.Array{snapshot.NewInt(1), snapshot.NewInt(2)}),
	)
	before := snapshot.Clone(state)

	p := &Patch{Changes: []Change{
		{Path: "/meta/a", Old: snapshot.NewInt(1), New: snapshot.NewInt(9)},
		{Path: "/list/1", Old: snapshot.NewInt(2), New: snapshot.NewInt(8)},
		{Path: "/extra", New: snapshot.Bool(true)},
	}}

	got, err := Apply(state, p)
	require.NoError(t, err)
	assert.True(t, snapshot.Equal(before, state), "input was mutated")
	assert.False(t, snapshot.Equal(before, got))

	// Applying twice from the same input gives the same result.
	again, err := Apply(state, p)
	require.NoError(t, err)
	assert.True(t, snapshot.Equal(got, again))
}

func TestApply_ArrayOperations(t *testing.T) {
	base := snapshot.Array{snapshot.String("a"), snapshot.String("b"), snapshot.String("c")}

	tests := []struct {
		name   string
		change Change
		want   snapshot.Array
	}{
		{"replace", Change{Path: "/1", Old: snapshot.String("b"), New: snapshot.String("B")}, snapshot.Array{snapshot.String("a"), snapshot.String("B"), snapshot.String("c")}},
		{"remove middle", Change{Path: "/1", Old: snapshot.String("b")}, snapshot.Array{snapshot.String("a"), snapshot.String("c")}},
		{"insert middle", Change{Path: "/1", New: snapshot.String("x")}, snapshot.Array{snapshot.String("a"), snapshot.String("x"), snapshot.String("b"), snapshot.String("c")}},
		{"append at len", Change{Path: "/3", New: snapshot.String("d")}, snapshot.Array{snapshot.String("a"), snapshot.String("b"), snapshot.String("c"), snapshot.String("d")}},
		{"append dash", Change{Path: "/-", New: snapshot.String("d")}, snapshot.Array{snapshot.String("a"), snapshot.String("b"), snapshot.String("c"), snapshot.String("d")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patch{Changes: []Change{tt.change}}
			got, err := Apply(base, p)
			require.NoError(t, err)
			assert.True(t, snapshot.Equal(tt.want, got), "got %v", got)

			back, err := ApplyInverse(got, p)
			if tt.change.Path == "/-" {
				// "-" names a different slot once the array has grown.
				return
			}
			require.NoError(t, err)
			assert.True(t, snapshot.Equal(base, back))
		})
	}
}

func TestApply_NestedInArray(t *testing.T) {
	state := snapshot.Array{obj(o("t", snapshot.String("a")))}
	p := &Patch{Changes: []Change{{Path: "/0/t", Old: snapshot.String("a"), New: snapshot.String("b")}}}

	got, err := Apply(state, p)
	require.NoError(t, err)
	assert.True(t, snapshot.Equal(snapshot.Array{obj(o("t", snapshot.String("b")))}, got))
}

func TestApply_InvalidPaths(t *testing.T) {
	tests := []struct {
		name  string
		state snapshot.Value
		path  string
	}{
		{"missing leading slash", obj(), "a"},
		{"through scalar", obj(o("a", snapshot.NewInt(1))), "/a/b"},
		{"index out of range", snapshot.Array{}, "/5"},
		{"leading zero index", snapshot.Array{snapshot.NewInt(1)}, "/01"},
		{"non numeric index", snapshot.Array{snapshot.NewInt(1)}, "/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patch{Changes: []Change{{Path: tt.path, New: snapshot.NewInt(1)}}}
			_, err := Apply(tt.state, p)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestApply_RootReplace(t *testing.T) {
	p := &Patch{Changes: []Change{{Path: "", Old: snapshot.NewInt(1), New: snapshot.String("x")}}}

	got, err := Apply(snapshot.NewInt(1), p)
	require.NoError(t, err)
	assert.Equal(t, snapshot.String("x"), got)

	_, err = Apply(snapshot.NewInt(2), p)
	assert.ErrorIs(t, err, ErrPatchMismatch)
}

func TestApply_NilPatchIsEmpty(t *testing.T) {
	state := obj(o("title", snapshot.String("a")))

	p, ok, err := Diff(state, snapshot.Clone(state))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, p)

	got, err := Apply(state, p)
	require.NoError(t, err)
	assert.True(t, snapshot.Equal(state, got))

	got, err = ApplyInverse(state, p)
	require.NoError(t, err)
	assert.True(t, snapshot.Equal(state, got))

	inv := Invert(nil)
	require.NotNil(t, inv)
	assert.Equal(t, 0, inv.Len())
}
