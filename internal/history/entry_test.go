package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/delta"
	"github.com/roach88/rewind/internal/snapshot"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"full", KindFull, false},
		{"delta", KindDelta, false},
		{"", KindFull, false},
		{"snapshot", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshalEntry(t *testing.T) {
	e := Entry{
		ID:          "0192d0c1-0000-7000-8000-000000000001",
		Scope:       "doc",
		Position:    3,
		Kind:        KindDelta,
		Payload:     `{"changes":[]}`,
		Description: "rename",
		CreatedAt:   time.UnixMilli(1700000000123),
	}

	data, err := MarshalEntry(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "0192d0c1-0000-7000-8000-000000000001",
		"scope": "doc",
		"position": 3,
		"kind": "delta",
		"payload": "{\"changes\":[]}",
		"description": "rename",
		"created_at": 1700000000123
	}`, string(data))

	back, err := UnmarshalEntry(data)
	require.NoError(t, err)
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, e.Kind, back.Kind)
	assert.Equal(t, e.Payload, back.Payload)
	assert.True(t, e.CreatedAt.Equal(back.CreatedAt))
}

func TestUnmarshalEntry_LegacyKind(t *testing.T) {
	for name, in := range map[string]string{
		"null kind":    `{"id":"a","scope":"doc","position":0,"kind":null,"payload":"{}","description":"","created_at":0}`,
		"missing kind": `{"id":"a","scope":"doc","position":0,"payload":"{}","description":"","created_at":0}`,
	} {
		t.Run(name, func(t *testing.T) {
			e, err := UnmarshalEntry([]byte(in))
			require.NoError(t, err)
			assert.Equal(t, KindFull, e.Kind)

			state, err := e.State()
			require.NoError(t, err)
			assert.Equal(t, snapshot.Object{}, state)
		})
	}
}

func TestUnmarshalEntry_Errors(t *testing.T) {
	_, err := UnmarshalEntry([]byte(`{"kind":"weird"}`))
	assert.ErrorContains(t, err, "unknown entry kind")

	_, err = UnmarshalEntry([]byte(`not json`))
	assert.Error(t, err)
}

func TestEntryPayloads(t *testing.T) {
	state := snapshot.NewObject(snapshot.O("title", snapshot.String("a")))

	full, err := NewFullEntry("doc", 0, state)
	require.NoError(t, err)
	assert.Equal(t, KindFull, full.Kind)
	assert.Equal(t, `{"title":"a"}`, full.Payload)

	got, err := full.State()
	require.NoError(t, err)
	assert.True(t, snapshot.Equal(state, got))

	_, err = full.Patch()
	assert.Error(t, err)

	p := &delta.Patch{Changes: []delta.Change{{Path: "/title", Old: snapshot.String("a"), New: snapshot.String("b")}}}
	d, err := NewDeltaEntry("doc", 1, p)
	require.NoError(t, err)
	assert.Equal(t, KindDelta, d.Kind)

	decoded, err := d.Patch()
	require.NoError(t, err)
	require.Len(t, decoded.Changes, 1)
	assert.Equal(t, "/title", decoded.Changes[0].Path)

	_, err = d.State()
	assert.Error(t, err)

	_, err = NewFullEntry("doc", 0, nil)
	assert.Error(t, err)
}

func TestEntryState_CorruptPayload(t *testing.T) {
	e := Entry{Position: 4, Kind: KindFull, Payload: `{"a":`}
	_, err := e.State()
	assert.ErrorContains(t, err, "entry 4")
}
