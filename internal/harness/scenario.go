package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a behavioral test scenario.
// A scenario optionally seeds the store with a raw snapshot, runs setup
// and flow steps against a fresh engine and asserts on the trace and the
// final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now is the RFC 3339 instant the scenario clock starts at.
	// Empty means testutil.DefaultEpoch.
	Now string `yaml:"now,omitempty"`

	// Snapshot is stored under the state key before the engine loads, as
	// if a previous session had persisted it. It need not be valid JSON.
	Snapshot string `yaml:"snapshot,omitempty"`

	// Setup steps establish initial state. They must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test, with optional expectations.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one engine operation.
type Step struct {
	// Invoke is the operation name (e.g. "create_job").
	Invoke string `yaml:"invoke"`

	// As binds the id of the returned record to a name. Later string
	// arguments of the form "$name" resolve to that id.
	As string `yaml:"as,omitempty"`

	// Args contains the operation arguments.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is "Success" or an engine error code such as "INVALID_INPUT".
	Case string `yaml:"case"`

	// Result contains expected fields of the returned record, in its JSON
	// shape. This is a subset match.
	Result map[string]interface{} `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Ref names a step bound with `as` (job, quote, result).
	Ref string `yaml:"ref,omitempty"`

	// Collection is a state collection such as "movements" (count, records).
	Collection string `yaml:"collection,omitempty"`

	// Where filters records of Collection. All fields must match.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values. Subset match.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Count is an expected number of records or trace events.
	Count *int `yaml:"count,omitempty"`

	// Value is an expected amount (balance).
	Value *float64 `yaml:"value,omitempty"`

	// Kind and Names describe directory contents.
	Kind  string   `yaml:"kind,omitempty"`
	Names []string `yaml:"names,omitempty"`

	// Action and Actions refer to operation names in the trace.
	Action  string   `yaml:"action,omitempty"`
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertJob          = "job"
	AssertQuote        = "quote"
	AssertResult       = "result"
	AssertCount        = "count"
	AssertRecords      = "records"
	AssertBalance      = "balance"
	AssertDirectory    = "directory"
	AssertDefaultState = "default_state"
	AssertTraceCount   = "trace_count"
	AssertTraceOrder   = "trace_order"
)

// Collections addressable by count and records assertions.
var collections = map[string]bool{
	"movements":     true,
	"jobs":          true,
	"jobPayments":   true,
	"jobLines":      true,
	"purchaseLines": true,
	"quotes":        true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
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

// validateScenario checks that required fields are present and valid.
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
	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}

	bound := map[string]bool{}
	check := func(section string, steps []Step) error {
		for i, step := range steps {
			if step.Invoke == "" {
				return fmt.Errorf("%s step %d: invoke is required", section, i)
			}
			if _, ok := operations[step.Invoke]; !ok {
				return fmt.Errorf("%s step %d: unknown operation %q", section, i, step.Invoke)
			}
			if step.Expect != nil && step.Expect.Case == "" {
				return fmt.Errorf("%s step %d: expect.case is required", section, i)
			}
			if step.As != "" {
				bound[step.As] = true
			}
		}
		return nil
	}
	if err := check("setup", s.Setup); err != nil {
		return err
	}
	for i, step := range s.Setup {
		if step.Expect != nil {
			return fmt.Errorf("setup step %d: setup steps cannot have expect", i)
		}
	}
	if err := check("flow", s.Flow); err != nil {
		return err
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, bound); err != nil {
			return fmt.Errorf("assertion %d (%s): %w", i, a.Type, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion, bound map[string]bool) error {
	needRef := func() error {
		if a.Ref == "" {
			return fmt.Errorf("ref is required")
		}
		if !bound[a.Ref] {
			return fmt.Errorf("ref %q is not bound by any step", a.Ref)
		}
		return nil
	}
	needCollection := func() error {
		if !collections[a.Collection] {
			return fmt.Errorf("unknown collection %q", a.Collection)
		}
		return nil
	}

	switch a.Type {
	case AssertJob, AssertQuote, AssertResult:
		if err := needRef(); err != nil {
			return err
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required")
		}
	case AssertCount:
		if err := needCollection(); err != nil {
			return err
		}
		if a.Count == nil {
			return fmt.Errorf("count is required")
		}
	case AssertRecords:
		if err := needCollection(); err != nil {
			return err
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required")
		}
	case AssertBalance:
		if a.Value == nil {
			return fmt.Errorf("value is required")
		}
	case AssertDirectory:
		if a.Kind != "client" && a.Kind != "supplier" {
			return fmt.Errorf("kind must be client or supplier")
		}
	case AssertDefaultState:
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("action is required")
		}
		if a.Count == nil {
			return fmt.Errorf("count is required")
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return fmt.Errorf("actions must list at least two operations")
		}
	default:
		return fmt.Errorf("unknown assertion type")
	}
	return nil
}
