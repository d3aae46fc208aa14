package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one engine scenario: a config, setup steps that must
// succeed, a flow of checked steps, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE config files, unified in order.
	// Relative paths resolve against the scenario file's directory.
	Specs []string `yaml:"specs,omitempty"`

	// Config is inline CUE source, an alternative to Specs.
	// With neither, the built-in defaults apply.
	Config string `yaml:"config,omitempty"`

	// Session is the journal session id. Defaults to DefaultSession.
	Session string `yaml:"session,omitempty"`

	// Cascade enables re-scanning after commits, bounded to this many
	// consecutive merges. Zero leaves cascade off.
	Cascade int `yaml:"cascade,omitempty"`

	// Setup steps run before the flow and must all succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the checked steps.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultSession is the session id used when a scenario names none.
const DefaultSession = "test-session"

// Step invocations.
const (
	InvokePurchase = "purchase"
	InvokeConsume  = "consume"
	InvokeUnlock   = "unlock"
	InvokeActivate = "activate"
	InvokeAdvance  = "advance"
	InvokeSettle   = "settle"
)

// CaseOK is the outcome of a step that returned no error. Refused steps
// report the engine error code instead, e.g. "QUEUE_FULL".
const CaseOK = "ok"

// ActionStep is a setup step.
type ActionStep struct {
	// Action is one of the Invoke* constants.
	Action string `yaml:"action"`

	// Args holds the step arguments:
	//   purchase: type
	//   consume:  index or token_id
	//   unlock:   recipe or wave
	//   activate: recipe, optional start (defaults to the matched start)
	//   advance:  ms
	Args map[string]any `yaml:"args,omitempty"`
}

// FlowStep is a checked step.
type FlowStep struct {
	// Invoke is one of the Invoke* constants.
	Invoke string `yaml:"invoke"`

	// Args holds the step arguments, as for ActionStep.
	Args map[string]any `yaml:"args,omitempty"`

	// Settle controls the settle that follows the step. Default true.
	// Set false to leave a merge in flight for the next step.
	Settle *bool `yaml:"settle,omitempty"`

	// Expect specifies the expected outcome. If nil, any outcome passes.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// settles reports whether the step is followed by a settle.
func (s FlowStep) settles() bool {
	return s.Settle == nil || *s.Settle
}

// ExpectClause specifies an expected step outcome.
type ExpectClause struct {
	// Case is CaseOK or an engine error code.
	Case string `yaml:"case"`
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Types is the expected queue contents (queue_types) or reward
	// sequence (rewards).
	Types []string `yaml:"types,omitempty"`

	// Count is the expected number for count, merge_count, activation and
	// trace_count.
	Count int `yaml:"count,omitempty"`

	// State is the expected engine state (state).
	State string `yaml:"state,omitempty"`

	// Recipe names the recipe (recipe_matchable, activation).
	Recipe string `yaml:"recipe,omitempty"`

	// Matchable is the expected matchability (recipe_matchable).
	Matchable *bool `yaml:"matchable,omitempty"`

	// Start is the expected match start (recipe_matchable).
	Start *int `yaml:"start,omitempty"`

	// Text must appear among the notifier messages (message).
	Text string `yaml:"text,omitempty"`

	// Rule restricts merge_count to one rule id.
	Rule string `yaml:"rule,omitempty"`

	// Kind is the journal entry kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected kind order (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Payload is a subset match on the entry payload (trace_contains).
	Payload map[string]any `yaml:"payload,omitempty"`
}

// Assertion types.
const (
	AssertQueueTypes      = "queue_types"
	AssertCount           = "count"
	AssertState           = "state"
	AssertRecipeMatchable = "recipe_matchable"
	AssertMessage         = "message"
	AssertRewards         = "rewards"
	AssertActivation      = "activation"
	AssertMergeCount      = "merge_count"
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file, resolving relative
// spec paths against the file's directory.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// relative spec paths against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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
	if len(s.Specs) > 0 && s.Config != "" {
		return fmt.Errorf("specs and config are mutually exclusive")
	}
	if s.Cascade < 0 {
		return fmt.Errorf("cascade must be non-negative")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(step.Action, step.Args); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(step.Invoke, step.Args); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks the invocation name and its required arguments.
func validateStep(invoke string, args map[string]any) error {
	has := func(key string) bool {
		_, ok := args[key]
		return ok
	}

	switch invoke {
	case "":
		return fmt.Errorf("invoke is required")
	case InvokePurchase:
		if !has("type") {
			return fmt.Errorf("purchase requires args.type")
		}
	case InvokeConsume:
		if !has("index") && !has("token_id") {
			return fmt.Errorf("consume requires args.index or args.token_id")
		}
	case InvokeUnlock:
		if !has("recipe") && !has("wave") {
			return fmt.Errorf("unlock requires args.recipe or args.wave")
		}
	case InvokeActivate:
		if !has("recipe") {
			return fmt.Errorf("activate requires args.recipe")
		}
	case InvokeAdvance:
		if !has("ms") {
			return fmt.Errorf("advance requires args.ms")
		}
	case InvokeSettle:
	default:
		return fmt.Errorf("unknown invocation %q", invoke)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertQueueTypes, AssertRewards:
	case AssertCount, AssertMergeCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for state", index)
		}
	case AssertRecipeMatchable:
		if a.Recipe == "" {
			return fmt.Errorf("assertions[%d]: recipe is required for recipe_matchable", index)
		}
		if a.Matchable == nil {
			return fmt.Errorf("assertions[%d]: matchable is required for recipe_matchable", index)
		}
	case AssertMessage:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for message", index)
		}
	case AssertActivation:
		if a.Recipe == "" {
			return fmt.Errorf("assertions[%d]: recipe is required for activation", index)
		}
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
