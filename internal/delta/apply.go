package delta

import (
	"fmt"
	"slices"

	"github.com/roach88/rewind/internal/snapshot"
)

// Apply applies p to state and returns the resulting value.
//
// Changes are applied in order. Before each write the value found at the
// change's path must equal its Old value, otherwise a *MismatchError is
// returned and no partial result escapes. Missing parent objects are
// created when Old is absent. state is never modified; unchanged subtrees
// are shared between input and output. A nil patch is empty.
func Apply(state snapshot.Value, p *Patch) (snapshot.Value, error) {
	if p == nil {
		return state, nil
	}
	cur := state
	for i, c := range p.Changes {
		tokens, err := parsePath(c.Path)
		if err != nil {
			return nil, fmt.Errorf("apply change %d: %w", i, err)
		}
		cur, err = setAt(cur, tokens, "", c)
		if err != nil {
			return nil, fmt.Errorf("apply change %d: %w", i, err)
		}
	}
	return cur, nil
}

// ApplyInverse undoes p on state. It is Apply(state, Invert(p)).
func ApplyInverse(state snapshot.Value, p *Patch) (snapshot.Value, error) {
	return Apply(state, Invert(p))
}

// setAt returns a copy of node with c applied at the location named by
// tokens. at is the pointer of node itself, for error reporting.
func setAt(node snapshot.Value, tokens []string, at string, c Change) (snapshot.Value, error) {
	if len(tokens) == 0 {
		if !snapshot.Equal(node, c.Old) {
			return nil, &MismatchError{Path: c.Path, Expected: c.Old, Found: node}
		}
		return c.New, nil
	}

	switch n := node.(type) {
	case snapshot.Object:
		return setInObject(n, tokens, at, c)
	case snapshot.Array:
		return setInArray(n, tokens, at, c)
	case nil:
		// Only an insertion may create the missing container.
		if c.Old != nil {
			return nil, &MismatchError{Path: c.Path, Expected: c.Old, Found: nil}
		}
		return setInObject(snapshot.Object{}, tokens, at, c)
	default:
		return nil, fmt.Errorf("%w: %q traverses %s at %q", ErrInvalidPath, c.Path, n.Kind(), at)
	}
}

func setInObject(obj snapshot.Object, tokens []string, at string, c Change) (snapshot.Value, error) {
	key := tokens[0]
	child := obj[key]

	var (
		updated snapshot.Value
		err     error
	)
	if len(tokens) == 1 {
		if !snapshot.Equal(child, c.Old) {
			return nil, &MismatchError{Path: c.Path, Expected: c.Old, Found: child}
		}
		updated = c.New
	} else {
		updated, err = setAt(child, tokens[1:], childPath(at, key), c)
		if err != nil {
			return nil, err
		}
	}

	out := make(snapshot.Object, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	if updated == nil {
		delete(out, key)
	} else {
		out[key] = updated
	}
	return out, nil
}

func setInArray(arr snapshot.Array, tokens []string, at string, c Change) (snapshot.Value, error) {
	idx, err := parseIndex(tokens[0], len(arr))
	if err != nil {
		return nil, err
	}
	if idx > len(arr) {
		return nil, fmt.Errorf("%w: index %d out of range for length %d at %q", ErrInvalidPath, idx, len(arr), at)
	}

	if len(tokens) > 1 {
		var child snapshot.Value
		if idx < len(arr) {
			child = arr[idx]
		}
		updated, err := setAt(child, tokens[1:], indexPath(at, idx), c)
		if err != nil {
			return nil, err
		}
		out := slices.Clone(arr)
		switch {
		case idx == len(arr) && updated != nil:
			out = append(out, updated)
		case idx < len(arr) && updated == nil:
			out = slices.Delete(out, idx, idx+1)
		case idx < len(arr):
			out[idx] = updated
		}
		return out, nil
	}

	switch {
	case c.Old == nil && c.New == nil:
		return arr, nil
	case c.Old == nil:
		// Insertion shifts later elements right.
		return slices.Insert(slices.Clone(arr), idx, c.New), nil
	}

	var found snapshot.Value
	if idx < len(arr) {
		found = arr[idx]
	}
	if !snapshot.Equal(found, c.Old) {
		return nil, &MismatchError{Path: c.Path, Expected: c.Old, Found: found}
	}

	out := slices.Clone(arr)
	if c.New == nil {
		return slices.Delete(out, idx, idx+1), nil
	}
	out[idx] = c.New
	return out, nil
}
