package harness

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rewind/internal/snapshot"
)

// Snapshot renders a result as indented canonical JSON: the step trace
// and every scope's stored log with reconstructed states. Equal results
// always render to identical bytes.
func Snapshot(name string, result *Result) ([]byte, error) {
	steps := make(snapshot.Array, len(result.Trace))
	for i, ev := range result.Trace {
		obj := snapshot.NewObject(
			snapshot.O("seq", snapshot.NewInt(int64(ev.Seq))),
			snapshot.O("op", snapshot.String(ev.Op)),
			snapshot.O("scope", snapshot.String(ev.Scope)),
			snapshot.O("current", snapshot.NewInt(int64(ev.Current))),
			snapshot.O("state", orNull(ev.State)),
		)
		if ev.Pushed != nil {
			obj["pushed"] = snapshot.Bool(*ev.Pushed)
		}
		if ev.Moved != nil {
			obj["moved"] = snapshot.Bool(*ev.Moved)
		}
		if ev.Error != "" {
			obj["error"] = snapshot.String(ev.Error)
		}
		steps[i] = obj
	}

	log := make(snapshot.Object, len(result.Log))
	for scope, entries := range result.Log {
		arr := make(snapshot.Array, len(entries))
		for i, e := range entries {
			arr[i] = snapshot.NewObject(
				snapshot.O("position", snapshot.NewInt(e.Position)),
				snapshot.O("kind", snapshot.String(e.Kind)),
				snapshot.O("id", snapshot.String(e.ID)),
				snapshot.O("description", snapshot.String(e.Description)),
				snapshot.O("created_at", snapshot.String(e.CreatedAt.UTC().Format(time.RFC3339))),
				snapshot.O("state", orNull(e.State)),
			)
		}
		log[scope] = arr
	}

	doc := snapshot.NewObject(
		snapshot.O("scenario", snapshot.String(name)),
		snapshot.O("steps", steps),
		snapshot.O("log", log),
	)

	compact, err := snapshot.MarshalCanonical(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func orNull(v snapshot.Value) snapshot.Value {
	if v == nil {
		return snapshot.Null{}
	}
	return v
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
