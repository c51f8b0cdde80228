package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/rewind/internal/delta"
	"github.com/roach88/rewind/internal/snapshot"
)

// Kind says how an entry's payload is interpreted.
type Kind string

const (
	// KindFull entries carry a complete canonical snapshot.
	KindFull Kind = "full"

	// KindDelta entries carry a patch relative to the previous entry.
	KindDelta Kind = "delta"
)

// ParseKind interprets a stored kind. Records written before kinds existed
// have no kind at all; they always held full snapshots, so an empty kind
// is KindFull.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindFull:
		return KindFull, nil
	case KindDelta:
		return KindDelta, nil
	default:
		return "", fmt.Errorf("unknown entry kind %q", s)
	}
}

// Entry is one step of a scope's history.
type Entry struct {
	ID          string
	Scope       string
	Position    int64
	Kind        Kind
	Payload     string
	Description string
	CreatedAt   time.Time
}

// NewFullEntry builds a full-snapshot entry for state.
func NewFullEntry(scope string, position int64, state snapshot.Value) (Entry, error) {
	payload, err := snapshot.Marshal(state)
	if err != nil {
		return Entry{}, fmt.Errorf("new full entry: %w", err)
	}
	return Entry{Scope: scope, Position: position, Kind: KindFull, Payload: string(payload)}, nil
}

// NewDeltaEntry builds a patch entry.
func NewDeltaEntry(scope string, position int64, p *delta.Patch) (Entry, error) {
	payload, err := delta.Encode(p)
	if err != nil {
		return Entry{}, fmt.Errorf("new delta entry: %w", err)
	}
	return Entry{Scope: scope, Position: position, Kind: KindDelta, Payload: string(payload)}, nil
}

// State decodes the payload of a full entry.
func (e Entry) State() (snapshot.Value, error) {
	if e.Kind == KindDelta {
		return nil, fmt.Errorf("entry %d is a delta, not a snapshot", e.Position)
	}
	v, err := snapshot.Unmarshal([]byte(e.Payload))
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", e.Position, err)
	}
	return v, nil
}

// Patch decodes the payload of a delta entry.
func (e Entry) Patch() (*delta.Patch, error) {
	if e.Kind != KindDelta {
		return nil, fmt.Errorf("entry %d is a snapshot, not a delta", e.Position)
	}
	p, err := delta.Decode([]byte(e.Payload))
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", e.Position, err)
	}
	return p, nil
}

// wireEntry is the serialized entry format. Kind is a pointer so that
// legacy records with a null or missing kind can be recognized.
type wireEntry struct {
	ID          string  `json:"id"`
	Scope       string  `json:"scope"`
	Position    int64   `json:"position"`
	Kind        *string `json:"kind"`
	Payload     string  `json:"payload"`
	Description string  `json:"description"`
	CreatedAt   int64   `json:"created_at"`
}

// MarshalEntry encodes an entry in the serialized entry format.
// CreatedAt is stored as Unix milliseconds.
func MarshalEntry(e Entry) ([]byte, error) {
	kind := string(e.Kind)
	w := wireEntry{
		ID:          e.ID,
		Scope:       e.Scope,
		Position:    e.Position,
		Kind:        &kind,
		Payload:     e.Payload,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.UnixMilli(),
	}
	return json.Marshal(w)
}

// UnmarshalEntry decodes the serialized entry format.
// A null or missing kind decodes as KindFull.
func UnmarshalEntry(data []byte) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}

	var raw string
	if w.Kind != nil {
		raw = *w.Kind
	}
	kind, err := ParseKind(raw)
	if err != nil {
		return Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}

	return Entry{
		ID:          w.ID,
		Scope:       w.Scope,
		Position:    w.Position,
		Kind:        kind,
		Payload:     w.Payload,
		Description: w.Description,
		CreatedAt:   time.UnixMilli(w.CreatedAt).UTC(),
	}, nil
}
