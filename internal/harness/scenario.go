package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario for the auth service.
// A scenario drives a flow of service operations against a fresh store and
// asserts on the resulting trace and final ledger state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is an optional CUE package catalog. Relative paths resolve
	// against the scenario file's directory. Empty means the built-in catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// SignupGrant overrides the tokens granted on registration.
	SignupGrant *int `yaml:"signup_grant,omitempty"`

	// Flow contains the operations to run, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and ledger.
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep invokes one service operation and optionally checks its outcome.
type FlowStep struct {
	// Invoke is the operation name (see the Op constants).
	Invoke string `yaml:"invoke"`

	// Args contains the operation arguments.
	Args map[string]interface{} `yaml:"args"`

	// Expect specifies the expected outcome.
	// If nil, the step is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is the expected outcome: ok, validation, conflict, auth or persistence.
	Case string `yaml:"case"`

	// Result contains expected result field values.
	// This is a subset match - only specified fields are validated.
	Result map[string]interface{} `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final ledger.
type Assertion struct {
	// Type specifies the assertion type:
	// - "balance": token balance of the account with Email
	// - "purchase_count": purchase records, optionally for Email only
	// - "consumption_count": consumption records, optionally for Email only
	// - "session": session State, and Email when authenticated
	// - "trace_contains": Action appears in trace with Args
	// - "trace_order": Actions appear in order
	// - "trace_count": Action appears exactly Count times
	Type string `yaml:"type"`

	// Email selects an account (balance, purchase_count, consumption_count, session).
	Email string `yaml:"email,omitempty"`

	// Tokens is the expected balance (balance).
	Tokens *int `yaml:"tokens,omitempty"`

	// Count is the expected number of records or invocations.
	Count *int `yaml:"count,omitempty"`

	// State is the expected session state: anonymous or authenticated (session).
	State string `yaml:"state,omitempty"`

	// Action is the operation name (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected operation arguments (trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Actions is the expected operation order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertBalance          = "balance"
	AssertPurchaseCount    = "purchase_count"
	AssertConsumptionCount = "consumption_count"
	AssertSession          = "session"
	AssertTraceContains    = "trace_contains"
	AssertTraceOrder       = "trace_order"
	AssertTraceCount       = "trace_count"
)

// Operations a flow step can invoke.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpPurchase = "purchase"
	OpUseToken = "use_token"
	OpCurrent  = "current"
	OpRestart  = "restart"
)

// Outcome cases.
const (
	CaseOK          = "ok"
	CaseValidation  = "validation"
	CaseConflict    = "conflict"
	CaseAuth        = "auth"
	CasePersistence = "persistence"
)

var knownOps = map[string]bool{
	OpRegister: true, OpLogin: true, OpLogout: true, OpPurchase: true,
	OpUseToken: true, OpCurrent: true, OpRestart: true,
}

var knownCases = map[string]bool{
	CaseOK: true, CaseValidation: true, CaseConflict: true, CaseAuth: true, CasePersistence: true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	if scenario.Catalog != "" {
		if _, err := os.Stat(scenario.Catalog); err != nil {
			return nil, fmt.Errorf("invalid scenario: catalog file not found: %s", scenario.Catalog)
		}
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.SignupGrant != nil && *s.SignupGrant < 0 {
		return fmt.Errorf("signup_grant must not be negative")
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if !knownOps[step.Invoke] {
			return fmt.Errorf("flow[%d]: unknown operation %q", i, step.Invoke)
		}
		if err := validateArgs(i, step); err != nil {
			return err
		}
		if step.Expect != nil {
			if step.Expect.Case == "" {
				return fmt.Errorf("flow[%d].expect: case is required", i)
			}
			if !knownCases[step.Expect.Case] {
				return fmt.Errorf("flow[%d].expect: unknown case %q", i, step.Expect.Case)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateArgs checks that each operation carries the arguments it reads.
// Values may still be empty; the service rejects those as validation errors.
func validateArgs(index int, step FlowStep) error {
	var required []string
	switch step.Invoke {
	case OpRegister:
		required = []string{"name", "email", "credential"}
	case OpLogin:
		required = []string{"email", "credential"}
	case OpPurchase:
		required = []string{"amount"}
	}
	for _, key := range required {
		if _, ok := step.Args[key]; !ok {
			return fmt.Errorf("flow[%d]: %s requires arg %q", index, step.Invoke, key)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertBalance:
		if a.Email == "" || a.Tokens == nil {
			return fmt.Errorf("assertions[%d]: email and tokens are required for balance", index)
		}
	case AssertPurchaseCount, AssertConsumptionCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
	case AssertSession:
		if a.State != "anonymous" && a.State != "authenticated" {
			return fmt.Errorf("assertions[%d]: state must be anonymous or authenticated", index)
		}
		if a.State == "anonymous" && a.Email != "" {
			return fmt.Errorf("assertions[%d]: email cannot be checked for an anonymous session", index)
		}
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
