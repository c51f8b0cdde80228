package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines an engine scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects the history log: memory (default), sqlite or badger.
	Backend string `yaml:"backend,omitempty"`

	// MaxHistory sets the engine capacity. Zero uses the engine default.
	MaxHistory int `yaml:"max_history,omitempty"`

	// Scope is the default scope for steps. Empty means "doc".
	Scope string `yaml:"scope,omitempty"`

	// Steps run in order against one engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the stored log after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one engine operation.
type Step struct {
	// Op is push, undo, redo, load, verify or restart.
	Op string `yaml:"op"`

	// Scope overrides the scenario's default scope.
	Scope string `yaml:"scope,omitempty"`

	// Doc is the document pushed (push only).
	Doc any `yaml:"doc,omitempty"`

	// Description is the entry description (push only).
	Description string `yaml:"description,omitempty"`

	// Expect validates the step's outcome. Nil only checks that the step
	// did not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	Pushed  *bool  `yaml:"pushed,omitempty"`
	Moved   *bool  `yaml:"moved,omitempty"`
	Current *int   `yaml:"current,omitempty"`
	State   any    `yaml:"state,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// Assertion validates the stored log of one scope.
type Assertion struct {
	// Type is entry_count, entry_kinds, positions or final_state.
	Type string `yaml:"type"`

	// Scope defaults to the scenario's default scope.
	Scope string `yaml:"scope,omitempty"`

	Count     int      `yaml:"count,omitempty"`     // entry_count
	Kinds     []string `yaml:"kinds,omitempty"`     // entry_kinds
	Positions []int64  `yaml:"positions,omitempty"` // positions
	State     any      `yaml:"state,omitempty"`     // final_state
}

// Step ops.
const (
	OpPush    = "push"
	OpUndo    = "undo"
	OpRedo    = "redo"
	OpLoad    = "load"
	OpVerify  = "verify"
	OpRestart = "restart"
)

// Assertion types.
const (
	AssertEntryCount = "entry_count"
	AssertEntryKinds = "entry_kinds"
	AssertPositions  = "positions"
	AssertFinalState = "final_state"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

const fallbackScope = "doc"

var (
	validOps      = []string{OpPush, OpUndo, OpRedo, OpLoad, OpVerify, OpRestart}
	validBackends = []string{"", BackendMemory, BackendSQLite, BackendBadger}
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// defaultScope returns the scope steps and assertions use when they name
// none.
func (s *Scenario) defaultScope() string {
	if s.Scope != "" {
		return s.Scope
	}
	return fallbackScope
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if !slices.Contains(validBackends, s.Backend) {
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if s.MaxHistory < 0 {
		return fmt.Errorf("max_history must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !slices.Contains(validOps, step.Op) {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Op == OpPush && step.Doc == nil {
			return fmt.Errorf("steps[%d]: doc is required for push", i)
		}
		if step.Op != OpPush && step.Doc != nil {
			return fmt.Errorf("steps[%d]: doc is only valid for push", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEntryCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for entry_count", index)
		}
	case AssertEntryKinds:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for entry_kinds", index)
		}
	case AssertPositions:
		if len(a.Positions) == 0 {
			return fmt.Errorf("assertions[%d]: positions list is required for positions", index)
		}
	case AssertFinalState:
		if a.State == nil {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
