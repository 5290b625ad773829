package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/simkernel/internal/compiler"
	"github.com/roach88/simkernel/internal/driver"
	"github.com/roach88/simkernel/internal/engine"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/model"
	"github.com/roach88/simkernel/internal/plan"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/resource"
	"github.com/roach88/simkernel/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Model           string
	Database        string
	StreamThreshold int
	Jobs            int
	MaxSteps        int
	Metrics         bool
}

// RunSummary is the outcome of one simulated plan.
type RunSummary struct {
	File       string            `json:"file"`
	Plan       string            `json:"plan"`
	RunID      string            `json:"run_id"`
	Digest     string            `json:"digest"`
	Horizon    string            `json:"horizon"`
	Instants   int               `json:"instants"`
	Activities int               `json:"activities"`
	Unfinished []string          `json:"unfinished"`
	Failures   []FailureSummary  `json:"failures"`
	Final      map[string]string `json:"final"`
}

// FailureSummary is an activity that could not be instantiated.
type FailureSummary struct {
	Activity string `json:"activity"`
	Type     string `json:"type"`
	Message  string `json:"message"`
}

// SimulateResult holds every run of one invocation.
type SimulateResult struct {
	Runs []RunSummary `json:"runs"`
}

// PlanErrors lists validation errors per plan file.
type PlanErrors struct {
	Plans []PlanValidation `json:"plans"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <plan>...",
		Short: "Simulate plans against a model",
		Long: `Simulate one or more plans against a mission model.

Plans are YAML or CUE files; directories are searched for both. Every plan
is validated against the model before any simulation starts. Plans run
concurrently, each in its own engine.

With --db, each run is recorded in a SQLite database: profile segments are
streamed to the database while the run progresses, and spans and results
are written when it finishes. Use the trace, profiles and runs commands to
inspect recorded runs.

Exit codes:
  0 - All plans simulated and every activity was instantiated
  1 - A plan is invalid, an activity failed, or a run aborted
  2 - Command error (missing files, unknown model, database errors)

Examples:
  simkernel simulate plans/peel.yaml
  simkernel simulate --db runs.db --jobs 4 ./plans
  simkernel simulate --metrics plans/snack.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "banana", "mission model to simulate against")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record runs in")
	cmd.Flags().IntVar(&opts.StreamThreshold, "stream-threshold", 0, "segments buffered before a database flush (0 for the default)")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 1, "plans simulated concurrently")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "task steps allowed per instant (0 for the default)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print engine metrics to stderr after the runs")

	return cmd
}

func runSimulate(opts *SimulateOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.logger(cmd.ErrOrStderr())

	ctor, err := opts.catalog().Lookup(opts.Model)
	if err != nil {
		formatter.Error(ErrCodeUnknownModel, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown model", err)
	}

	plans, files, err := loadPlans(args, formatter)
	if err != nil {
		return err
	}

	if invalid := validatePlans(plans, files, ctor().Activities); len(invalid.Plans) > 0 {
		if err := formatter.Failure(invalid, ErrCodeInvalidPlan, fmt.Sprintf("%d plan(s) failed validation", len(invalid.Plans))); err != nil {
			return WrapExitError(ExitFailure, "invalid plans", err)
		}
		return NewExitError(ExitFailure, "invalid plans")
	}

	var st *store.Store
	if opts.Database != "" {
		formatter.VerboseLog("Opening database %s", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	var registry *prometheus.Registry
	if opts.Metrics {
		registry = prometheus.NewRegistry()
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summaries := make([]RunSummary, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Jobs, 1))
	for i, p := range plans {
		runID := store.NewRunID()
		g.Go(func() error {
			logger.Debug("simulating plan", "file", files[i], "run", runID)
			res, err := simulateOne(gctx, opts, st, registry, ctor, p, runID, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", files[i], err)
			}
			summaries[i] = summarize(files[i], runID, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		code, exit := ErrCodeRunFailed, ExitFailure
		var dbErr *storeError
		if errors.As(err, &dbErr) {
			code, exit = ErrCodeStore, ExitCommandError
		}
		formatter.Error(code, err.Error(), nil)
		return WrapExitError(exit, "simulation failed", err)
	}

	result := SimulateResult{Runs: summaries}
	failed := 0
	for _, s := range summaries {
		failed += len(s.Failures)
	}
	if failed > 0 {
		if err := formatter.Failure(result, ErrCodeActivityFailed, fmt.Sprintf("%d activities could not be instantiated", failed)); err != nil {
			return WrapExitError(ExitFailure, "activities failed", err)
		}
	} else if err := formatter.Success(result); err != nil {
		return err
	}

	if registry != nil {
		families, err := registry.Gather()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
		if err := writeMetricFamilies(cmd.ErrOrStderr(), families); err != nil {
			return err
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, "activities failed")
	}
	return nil
}

// storeError marks failures of the run database, as opposed to failures
// of the simulation itself.
type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// simulateOne runs one plan in a fresh model instance. With a store, the
// run is begun before simulating so segments can stream into it.
func simulateOne(ctx context.Context, opts *SimulateOptions, st *store.Store, registry *prometheus.Registry,
	ctor model.Constructor, p *plan.Plan, runID string, logger *slog.Logger) (*driver.Results, error) {
	m := ctor()
	logger = logger.With("run", runID)

	var engineOpts []engine.EngineOption
	if registry != nil {
		engineOpts = append(engineOpts, engine.WithRegisterer(registry, runID))
	}
	if opts.MaxSteps > 0 {
		engineOpts = append(engineOpts, engine.WithMaxStepsPerInstant(opts.MaxSteps))
	}
	driverOpts := []driver.DriverOption{
		driver.WithLogger(logger),
		driver.WithEngineOptions(engineOpts...),
	}

	if st == nil {
		return driver.Simulate(ctx, m, p, driverOpts...)
	}

	digest, err := p.Digest()
	if err != nil {
		return nil, err
	}
	if _, err := st.BeginRun(ctx, store.Run{
		ID:         runID,
		Plan:       p.Name,
		PlanDigest: digest,
		Model:      m.Name,
		Horizon:    p.Horizon,
	}); err != nil {
		return nil, &storeError{err}
	}

	var managerOpts []profile.ManagerOption
	managerOpts = append(managerOpts, profile.WithLogger(logger))
	if opts.StreamThreshold > 0 {
		managerOpts = append(managerOpts, profile.WithFlushThreshold(opts.StreamThreshold))
	}
	manager := profile.NewStreamingManager(st.SegmentSink(runID), managerOpts...)
	driverOpts = append(driverOpts, driver.WithManager(manager))

	res, err := driver.Simulate(ctx, m, p, driverOpts...)
	if err != nil {
		// The run failed; record why with a fresh context in case ctx was
		// the cause.
		if failErr := st.FailRun(context.Background(), runID, err); failErr != nil {
			logger.Error("failed to record run failure", "error", failErr)
		}
		return nil, err
	}
	if err := st.FinishRun(ctx, runID, res); err != nil {
		return nil, &storeError{err}
	}
	return res, nil
}

func loadPlans(args []string, formatter *OutputFormatter) ([]*plan.Plan, []string, error) {
	files, err := FindPlanFiles(args)
	if err != nil {
		return nil, nil, loadFailure(formatter, err)
	}
	plans := make([]*plan.Plan, 0, len(files))
	for _, f := range files {
		formatter.VerboseLog("Loading %s", f)
		p, err := LoadPlanFile(f)
		if err != nil {
			return nil, nil, loadFailure(formatter, err)
		}
		plans = append(plans, p)
	}
	return plans, files, nil
}

// loadFailure reports a plan loading error. Missing paths are command
// errors; unreadable plans are failures.
func loadFailure(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load plans", err)
	}
	formatter.Error(loadErr.Code, loadErr.Error(), nil)
	switch loadErr.Code {
	case ErrCodeNotFound, ErrCodeNoFiles, ErrCodeScanError:
		return WrapExitError(ExitCommandError, "failed to load plans", err)
	}
	return WrapExitError(ExitFailure, "failed to load plans", err)
}

func validatePlans(plans []*plan.Plan, files []string, types *model.Registry) PlanErrors {
	out := PlanErrors{Plans: []PlanValidation{}}
	for i, p := range plans {
		if errs := compiler.Validate(p, types); len(errs) > 0 {
			out.Plans = append(out.Plans, PlanValidation{File: files[i], Plan: p.Name, Valid: false, Errors: errs})
		}
	}
	return out
}

func summarize(file, runID string, res *driver.Results) RunSummary {
	s := RunSummary{
		File:       file,
		Plan:       res.Plan,
		RunID:      runID,
		Digest:     res.Digest,
		Horizon:    res.Horizon.String(),
		Instants:   res.Commits,
		Activities: len(res.Activities),
		Unfinished: []string{},
		Failures:   []FailureSummary{},
		Final:      make(map[string]string, len(res.Final)),
	}
	s.Unfinished = append(s.Unfinished, res.Unfinished...)
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, FailureSummary{Activity: f.ActivityID, Type: f.Type, Message: f.Message})
	}
	for name, d := range res.Final {
		s.Final[name] = formatDynamics(d)
	}
	return s
}

// formatDynamics renders dynamics for display: a value, plus its rate
// when it is changing.
func formatDynamics(d resource.Dynamics) string {
	switch d := d.(type) {
	case resource.Linear:
		if d.Rate == 0 {
			return ir.Format(ir.Real(d.Initial))
		}
		return fmt.Sprintf("%s %+g/s", ir.Format(ir.Real(d.Initial)), d.Rate)
	case resource.Discrete:
		return ir.Format(d.Value)
	default:
		return ir.Format(resource.Encode(d))
	}
}

// WriteText implements textWriter.
func (r SimulateResult) WriteText(w io.Writer) error {
	for i, s := range r.Runs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", s.Plan, s.File)
		fmt.Fprintf(w, "  run:        %s\n", s.RunID)
		fmt.Fprintf(w, "  digest:     %s\n", s.Digest)
		fmt.Fprintf(w, "  horizon:    %s\n", s.Horizon)
		fmt.Fprintf(w, "  instants:   %d\n", s.Instants)
		fmt.Fprintf(w, "  activities: %d (%d unfinished, %d failed)\n", s.Activities, len(s.Unfinished), len(s.Failures))
		for _, id := range s.Unfinished {
			fmt.Fprintf(w, "    … %s still running at horizon\n", id)
		}
		for _, f := range s.Failures {
			fmt.Fprintf(w, "    ✗ %s (%s): %s\n", f.Activity, f.Type, f.Message)
		}
		fmt.Fprintln(w, "  final:")
		names := make([]string, 0, len(s.Final))
		for name := range s.Final {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "    %-12s %s\n", name, s.Final[name])
		}
	}
	return nil
}

// WriteText implements textWriter.
func (e PlanErrors) WriteText(w io.Writer) error {
	for _, p := range e.Plans {
		if err := p.WriteText(w); err != nil {
			return err
		}
	}
	return nil
}

func writeMetricFamilies(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
