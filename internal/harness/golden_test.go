package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// it with its golden file.
func TestScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_StableAcrossRuns(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/scopes.yaml")
	require.NoError(t, err)

	var outputs []string
	for range 3 {
		result, err := Run(scenario)
		require.NoError(t, err)
		data, err := Snapshot(scenario.Name, result)
		require.NoError(t, err)
		outputs = append(outputs, string(data))
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[0], outputs[2])
}

func TestSnapshot_OmitsUnsetFields(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace, StepEvent{Seq: 1, Op: OpLoad, Scope: "doc", Current: -1})

	data, err := Snapshot("empty", result)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"state": null`)
	assert.Contains(t, out, `"log": {}`)
	assert.NotContains(t, out, `"pushed"`)
	assert.NotContains(t, out, `"moved"`)
	assert.NotContains(t, out, `"error"`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}
