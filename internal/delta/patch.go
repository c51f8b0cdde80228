package delta

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/rewind/internal/snapshot"
)

// Change describes one path-addressed modification.
// A nil Old means the location did not exist; a nil New means it is removed.
type Change struct {
	Path string
	Old  snapshot.Value
	New  snapshot.Value
}

// Patch is an ordered list of changes plus the content hash of the state
// it produces. Hash is empty for inverted patches.
type Patch struct {
	Changes []Change
	Hash    string
}

// Len returns the number of changes.
func (p *Patch) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Changes)
}

// Invert returns the patch that undoes p: every Old/New pair is swapped and
// the order reversed, so later changes are undone first. A nil patch
// inverts to an empty one.
func Invert(p *Patch) *Patch {
	if p == nil {
		return &Patch{}
	}
	inv := &Patch{Changes: make([]Change, len(p.Changes))}
	for i, c := range p.Changes {
		inv.Changes[len(p.Changes)-1-i] = Change{Path: c.Path, Old: c.New, New: c.Old}
	}
	return inv
}

// wireChange is the serialized form of a Change. Old/New are omitted when
// absent; a present JSON null is a Null value.
type wireChange struct {
	Path string          `json:"path"`
	Old  json.RawMessage `json:"old,omitempty"`
	New  json.RawMessage `json:"new,omitempty"`
}

type wirePatch struct {
	Changes []wireChange `json:"changes"`
	Hash    string       `json:"hash,omitempty"`
}

// Encode serializes a patch to its stored JSON form.
func Encode(p *Patch) ([]byte, error) {
	wire := wirePatch{
		Changes: make([]wireChange, len(p.Changes)),
		Hash:    p.Hash,
	}
	for i, c := range p.Changes {
		wc := wireChange{Path: c.Path}
		if c.Old != nil {
			data, err := snapshot.Marshal(c.Old)
			if err != nil {
				return nil, fmt.Errorf("encode patch: change %d old: %w", i, err)
			}
			wc.Old = data
		}
		if c.New != nil {
			data, err := snapshot.Marshal(c.New)
			if err != nil {
				return nil, fmt.Errorf("encode patch: change %d new: %w", i, err)
			}
			wc.New = data
		}
		wire.Changes[i] = wc
	}
	return json.Marshal(wire)
}

// Decode parses a patch from its stored JSON form.
func Decode(data []byte) (*Patch, error) {
	var wire wirePatch
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}

	p := &Patch{
		Changes: make([]Change, len(wire.Changes)),
		Hash:    wire.Hash,
	}
	for i, wc := range wire.Changes {
		if _, err := parsePath(wc.Path); err != nil {
			return nil, fmt.Errorf("decode patch: change %d: %w", i, err)
		}
		c := Change{Path: wc.Path}
		if len(wc.Old) > 0 {
			v, err := snapshot.Unmarshal(wc.Old)
			if err != nil {
				return nil, fmt.Errorf("decode patch: change %d old: %w", i, err)
			}
			c.Old = v
		}
		if len(wc.New) > 0 {
			v, err := snapshot.Unmarshal(wc.New)
			if err != nil {
				return nil, fmt.Errorf("decode patch: change %d new: %w", i, err)
			}
			c.New = v
		}
		p.Changes[i] = c
	}
	return p, nil
}

// Diff computes the patch that turns prev into next.
// ok is false when the two values are equal; no patch is produced then.
//
// Objects are compared key by key in canonical key order. Arrays of equal
// length get one replace per differing index, without descending into the
// element. Arrays of different length, kind changes and differing scalars
// get one replace at the current path.
func Diff(prev, next snapshot.Value) (p *Patch, ok bool, err error) {
	if snapshot.Equal(prev, next) {
		return nil, false, nil
	}

	var changes []Change
	diffValue("", prev, next, &changes)

	p = &Patch{Changes: changes}
	if next != nil {
		p.Hash, err = snapshot.Hash(next)
		if err != nil {
			return nil, false, fmt.Errorf("diff: %w", err)
		}
	}
	return p, true, nil
}

// diffValue appends the changes turning a into b at path. Callers only
// invoke it for unequal values.
func diffValue(path string, a, b snapshot.Value, out *[]Change) {
	switch av := a.(type) {
	case snapshot.Object:
		if bv, ok := b.(snapshot.Object); ok {
			diffObject(path, av, bv, out)
			return
		}
	case snapshot.Array:
		if bv, ok := b.(snapshot.Array); ok && len(av) == len(bv) {
			diffArray(path, av, bv, out)
			return
		}
	}
	*out = append(*out, Change{Path: path, Old: a, New: b})
}

func diffObject(path string, a, b snapshot.Object, out *[]Change) {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, dup := a[k]; !dup {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, snapshot.CompareKeys)

	for _, k := range keys {
		av, inA := a[k]
		bv, inB := b[k]
		child := childPath(path, k)
		switch {
		case !inB:
			*out = append(*out, Change{Path: child, Old: av})
		case !inA:
			*out = append(*out, Change{Path: child, New: bv})
		case !snapshot.Equal(av, bv):
			diffValue(child, av, bv, out)
		}
	}
}

func diffArray(path string, a, b snapshot.Array, out *[]Change) {
	for i := range a {
		if !snapshot.Equal(a[i], b[i]) {
			*out = append(*out, Change{Path: indexPath(path, i), Old: a[i], New: b[i]})
		}
	}
}
