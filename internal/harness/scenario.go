package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a step-execution test scenario.
// Scenarios run a list of steps against a scripted session and assert on
// the resulting trace and final System Variable State.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is the run identifier recorded in the execution log.
	// Defaults to "scenario-<name>" so golden traces are stable.
	RunID string `yaml:"run_id,omitempty"`

	// CheckStage enables phase policy checks on assignments.
	CheckStage bool `yaml:"check_stage,omitempty"`

	// MaxSteps bounds the low-level steps one queued step may expand to.
	// Zero keeps the executor default.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// BlocksDir is where Run TCD Block looks for block files. Relative
	// paths resolve against the scenario file.
	BlocksDir string `yaml:"blocks_dir,omitempty"`

	// Vars are script variables available to {name} interpolation.
	Vars map[string]string `yaml:"vars,omitempty"`

	// Session programs the responses of the scripted device.
	Session SessionScript `yaml:"session,omitempty"`

	// Steps are enqueued in order. A step may span several lines.
	Steps []string `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// SessionScript programs a testutil.RecordingSession. Rules match by
// prefix of the recorded call line; later rules win.
type SessionScript struct {
	Power string      `yaml:"power,omitempty"`
	Fail  []FailRule  `yaml:"fail,omitempty"`
	Panic []string    `yaml:"panic,omitempty"`
	Reply []ReplyRule `yaml:"reply,omitempty"`
	Check []CheckRule `yaml:"check,omitempty"`
}

// FailRule makes matching calls return an error with the given message.
type FailRule struct {
	Call  string `yaml:"call"`
	Error string `yaml:"error"`
}

// ReplyRule sets the result of matching command calls.
type ReplyRule struct {
	Call     string `yaml:"call"`
	ExitCode int    `yaml:"exit_code,omitempty"`
	Output   string `yaml:"output,omitempty"`
}

// CheckRule sets the outcome of matching check calls.
type CheckRule struct {
	Call string `yaml:"call"`
	OK   bool   `yaml:"ok"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "call_contains": a session call starts with Call
	// - "call_order": calls starting with each of Calls appear in order
	// - "call_count": exactly Count calls start with Call
	// - "step_failed": step Step failed, with Error in its message
	// - "step_succeeded": step Step completed without error
	// - "output_contains": the output contains Text
	// - "final_state": system variables equal Expect
	Type string `yaml:"type"`

	Call   string            `yaml:"call,omitempty"`
	Calls  []string          `yaml:"calls,omitempty"`
	Count  int               `yaml:"count,omitempty"`
	Step   int               `yaml:"step,omitempty"`
	Error  string            `yaml:"error,omitempty"`
	Text   string            `yaml:"text,omitempty"`
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCallContains   = "call_contains"
	AssertCallOrder      = "call_order"
	AssertCallCount      = "call_count"
	AssertStepFailed     = "step_failed"
	AssertStepSucceeded  = "step_succeeded"
	AssertOutputContains = "output_contains"
	AssertFinalState     = "final_state"
)

// State keys accepted by final_state.
var stateKeys = []string{"environment", "itplib", "os", "in_prepare"}

// ScenarioExt is the file extension of scenario files.
const ScenarioExt = ".yaml"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative blocks_dir is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if scenario.BlocksDir != "" && !filepath.IsAbs(scenario.BlocksDir) {
		scenario.BlocksDir = filepath.Join(filepath.Dir(path), scenario.BlocksDir)
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
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

// LoadDir loads every scenario file in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ScenarioExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that all required fields are present.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	for i, step := range s.Steps {
		if strings.TrimSpace(step) == "" {
			return fmt.Errorf("steps[%d]: step is empty", i)
		}
	}
	for i, r := range s.Session.Fail {
		if r.Call == "" || r.Error == "" {
			return fmt.Errorf("session.fail[%d]: call and error are required", i)
		}
	}
	for i, r := range s.Session.Reply {
		if r.Call == "" {
			return fmt.Errorf("session.reply[%d]: call is required", i)
		}
	}
	for i, r := range s.Session.Check {
		if r.Call == "" {
			return fmt.Errorf("session.check[%d]: call is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCallContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for call_contains", index)
		}
	case AssertCallOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for call_order", index)
		}
	case AssertCallCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for call_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertStepFailed, AssertStepSucceeded:
		if a.Step < 1 || a.Step > steps {
			return fmt.Errorf("assertions[%d]: step must be between 1 and %d for %s", index, steps, a.Type)
		}
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for k := range a.Expect {
			if !slices.Contains(stateKeys, k) {
				return fmt.Errorf("assertions[%d]: unknown state key %q (want one of %s)", index, k, strings.Join(stateKeys, ", "))
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
