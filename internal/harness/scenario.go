package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one end-to-end test case.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// TiePolicy selects the product merge tie policy: keep-existing
	// (default) or prefer-incoming.
	TiePolicy string `yaml:"tie_policy,omitempty"`

	// Setup steps establish initial state. A failing setup step aborts
	// the scenario.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow steps are invoked in order; each may carry an expectation.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ActionStep is a setup invocation.
type ActionStep struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args,omitempty"`
}

// FlowStep is a flow invocation.
type FlowStep struct {
	Invoke string         `yaml:"invoke"`
	Args   map[string]any `yaml:"args,omitempty"`
	Expect *ExpectClause  `yaml:"expect,omitempty"`
}

// ExpectClause describes the expected completion.
type ExpectClause struct {
	// Case is "ok" or "error".
	Case string `yaml:"case"`

	// Error, when set, must be a substring of the error message.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the completion result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args is a subset match used by trace_contains.
	Args map[string]any `yaml:"args,omitempty"`

	// Actions is the expected order used by trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Table is the collection used by final_state.
	Table string `yaml:"table,omitempty"`

	// Where filters final_state documents by field equality.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is a subset match applied to every matching document, or to
	// the classifier state for reachability.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of trace entries, matching documents,
	// or pending orders.
	Count *int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertReachability  = "reachability"
	AssertPendingCount  = "pending_count"
)

// LoadScenario reads a scenario file. Unknown fields are rejected so a
// typo cannot silently disable an assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
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

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	switch s.TiePolicy {
	case "", "keep-existing", "prefer-incoming":
	default:
		return fmt.Errorf("tie_policy %q: must be keep-existing or prefer-incoming", s.TiePolicy)
	}
	for i, step := range s.Setup {
		if _, ok := actions[step.Action]; !ok {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
	}
	for i, step := range s.Flow {
		if _, ok := actions[step.Invoke]; !ok {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if step.Expect != nil && step.Expect.Case != CaseOK && step.Expect.Case != CaseError {
			return fmt.Errorf("flow[%d]: expect.case must be %q or %q", i, CaseOK, CaseError)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("trace_contains requires action")
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return fmt.Errorf("trace_order requires at least two actions")
		}
	case AssertTraceCount:
		if a.Action == "" || a.Count == nil {
			return fmt.Errorf("trace_count requires action and count")
		}
	case AssertFinalState:
		if _, ok := collections[a.Table]; !ok {
			return fmt.Errorf("final_state: unknown table %q", a.Table)
		}
		if a.Count == nil && len(a.Expect) == 0 {
			return fmt.Errorf("final_state requires count or expect")
		}
	case AssertReachability:
		if _, ok := a.Expect["reachable"]; !ok {
			return fmt.Errorf("reachability requires expect.reachable")
		}
	case AssertPendingCount:
		if a.Count == nil {
			return fmt.Errorf("pending_count requires count")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
