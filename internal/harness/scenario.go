package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/simkernel/internal/compiler"
	"github.com/roach88/simkernel/internal/plan"
	"github.com/roach88/simkernel/internal/simtime"
)

// Scenario is a plan run against a model with assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies the scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Model names the mission model in the catalog.
	Model string `yaml:"model"`

	// RawPlan is an inline plan document.
	RawPlan yaml.Node `yaml:"plan,omitempty"`

	// PlanFile is a path to a YAML or CUE plan, relative to the scenario.
	PlanFile string `yaml:"plan_file,omitempty"`

	// Assertions are checked after the run.
	Assertions []Assertion `yaml:"assertions"`

	// Plan is the resolved plan. LoadScenario fills it from RawPlan or
	// PlanFile; programmatic scenarios set it directly.
	Plan *plan.Plan `yaml:"-"`
}

// Assertion is one check on a run. Which fields apply depends on Type.
type Assertion struct {
	Type string `yaml:"type"`

	// Resource is the resource name (final_value, value_at).
	Resource string `yaml:"resource,omitempty"`

	// Value is the expected value: a number for real resources, any scalar
	// for discrete ones (final_value, value_at).
	Value any `yaml:"value,omitempty"`

	// Tolerance bounds the difference for real values. Default 1e-9.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// At is the instant to read (value_at).
	At *simtime.Duration `yaml:"at,omitempty"`

	// Activity is the planned activity ID (span_window, span_count).
	Activity string `yaml:"activity,omitempty"`

	// Start and End bound the activity's root span (span_window). A nil
	// End expects the span to still be open at the horizon.
	Start *simtime.Duration `yaml:"start,omitempty"`
	End   *simtime.Duration `yaml:"end,omitempty"`

	// Count is the expected number of spans (span_count).
	Count int `yaml:"count,omitempty"`

	// Activities is the expected set of activity IDs (unfinished, failed).
	Activities []string `yaml:"activities,omitempty"`
}

// Assertion types.
const (
	AssertFinalValue = "final_value"
	AssertValueAt    = "value_at"
	AssertSpanWindow = "span_window"
	AssertSpanCount  = "span_count"
	AssertUnfinished = "unfinished"
	AssertFailed     = "failed"
)

// DefaultTolerance bounds real comparisons when an assertion sets none.
const DefaultTolerance = 1e-9

// ScenarioNotFoundError is returned when a scenario's plan file is missing.
type ScenarioNotFoundError struct {
	Scenario     string
	PlanFile     string
	ResolvedPath string
}

func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q references plan file %q which does not exist (resolved to: %s)",
		e.Scenario, e.PlanFile, e.ResolvedPath)
}

// LoadScenario reads a scenario file, rejecting unknown fields, and
// resolves its plan.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := s.resolvePlan(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) resolvePlan(baseDir string) error {
	inline := s.RawPlan.Kind != 0
	switch {
	case inline && s.PlanFile != "":
		return errors.New("plan and plan_file are mutually exclusive")
	case inline:
		data, err := yaml.Marshal(&s.RawPlan)
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}
		p, err := plan.Parse(data)
		if err != nil {
			return err
		}
		s.Plan = p
	case s.PlanFile != "":
		path := s.PlanFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return &ScenarioNotFoundError{Scenario: s.Name, PlanFile: s.PlanFile, ResolvedPath: path}
		}
		p, err := LoadPlan(path)
		if err != nil {
			return err
		}
		s.Plan = p
	}
	return nil
}

// LoadPlan loads a YAML plan, or compiles a CUE one.
func LoadPlan(path string) (*plan.Plan, error) {
	if strings.HasSuffix(path, ".cue") {
		return compiler.CompileFile(path)
	}
	return plan.Load(path)
}

// validateScenario checks required fields and per-type assertion fields.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Model == "" {
		return errors.New("model is required")
	}
	if s.Plan == nil {
		return errors.New("plan or plan_file is required")
	}
	if len(s.Assertions) == 0 {
		return errors.New("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Tolerance < 0 {
		return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
	}

	switch a.Type {
	case AssertFinalValue, AssertValueAt:
		if a.Resource == "" {
			return fmt.Errorf("assertions[%d]: resource is required for %s", index, a.Type)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
		}
		if a.Type == AssertValueAt && a.At == nil {
			return fmt.Errorf("assertions[%d]: at is required for value_at", index)
		}
	case AssertSpanWindow:
		if a.Activity == "" {
			return fmt.Errorf("assertions[%d]: activity is required for span_window", index)
		}
		if a.Start == nil {
			return fmt.Errorf("assertions[%d]: start is required for span_window", index)
		}
	case AssertSpanCount:
		if a.Activity == "" {
			return fmt.Errorf("assertions[%d]: activity is required for span_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for span_count", index)
		}
	case AssertUnfinished, AssertFailed:
		// An empty list asserts that nothing is unfinished or failed.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
