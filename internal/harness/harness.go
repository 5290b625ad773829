package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/simkernel/internal/driver"
	"github.com/roach88/simkernel/internal/model"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/store"
)

// scenarioRunID is the run ID used in the scratch store. Each scenario gets
// its own database, so it never collides.
const scenarioRunID = "scenario"

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// Errors holds one message per failed assertion.
	Errors []string

	// Results is the simulation output.
	Results *driver.Results

	// Profiles are the resource profiles as read back from the store.
	Profiles []profile.Profile
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError records a failed assertion.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
	driver []driver.DriverOption
}

// WithLogger sets the logger passed to the driver. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithDriverOptions passes extra options to the driver.
func WithDriverOptions(opts ...driver.DriverOption) Option {
	return func(c *runConfig) {
		c.driver = append(c.driver, opts...)
	}
}

// Run simulates a scenario's plan against its model and evaluates the
// assertions.
//
// Profiles are streamed into a fresh in-memory store and read back from
// it, so assertions see exactly what a persisted run would hold.
//
// An error is returned only when the scenario could not run at all; failed
// assertions are reported in the Result.
func Run(scenario *Scenario, catalog *model.Catalog, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	if scenario.Plan == nil {
		return nil, fmt.Errorf("scenario %s has no plan", scenario.Name)
	}
	ctor, err := catalog.Lookup(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	m := ctor()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	digest, err := scenario.Plan.Digest()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	if _, err := st.BeginRun(ctx, store.Run{
		ID:         scenarioRunID,
		Plan:       scenario.Plan.Name,
		PlanDigest: digest,
		Model:      m.Name,
		Horizon:    scenario.Plan.Horizon,
	}); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	manager := profile.NewStreamingManager(st.SegmentSink(scenarioRunID), profile.WithLogger(cfg.logger))
	driverOpts := append([]driver.DriverOption{
		driver.WithLogger(cfg.logger),
		driver.WithManager(manager),
	}, cfg.driver...)

	res, err := driver.Simulate(ctx, m, scenario.Plan, driverOpts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	if err := st.FinishRun(ctx, scenarioRunID, res); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	profiles, err := st.LoadProfiles(ctx, scenarioRunID)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Results = res
	result.Profiles = profiles
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
