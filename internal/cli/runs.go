package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/simkernel/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database   string
	PlanDigest string
}

// RunInfo describes one recorded run.
type RunInfo struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	Plan       string `json:"plan"`
	PlanDigest string `json:"plan_digest"`
	Model      string `json:"model"`
	Horizon    string `json:"horizon"`
	Status     string `json:"status"`
	Instants   int    `json:"instants"`
	Digest     string `json:"digest,omitempty"`
}

// RunsResult lists recorded runs.
type RunsResult struct {
	Runs []RunInfo `json:"runs"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded in a database, oldest first.

With --plan-digest, only runs of that exact plan are listed; comparing
their result digests shows whether the plan simulates reproducibly.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.PlanDigest, "plan-digest", "", "only list runs of this plan")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	var runs []store.Run
	if opts.PlanDigest != "" {
		runs, err = st.RunsForPlan(ctx, opts.PlanDigest)
	} else {
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	result := RunsResult{Runs: make([]RunInfo, 0, len(runs))}
	for _, r := range runs {
		result.Runs = append(result.Runs, runInfo(r))
	}
	return formatter.Success(result)
}

// WriteText implements textWriter.
func (r RunsResult) WriteText(w io.Writer) error {
	if len(r.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	for _, run := range r.Runs {
		fmt.Fprintf(w, "%4d  %s  %-8s  %s (%s, %d instants)\n",
			run.Seq, run.ID, run.Status, run.Plan, run.Horizon, run.Instants)
	}
	return nil
}

func runInfo(r store.Run) RunInfo {
	return RunInfo{
		ID:         r.ID,
		Seq:        r.Seq,
		Plan:       r.Plan,
		PlanDigest: r.PlanDigest,
		Model:      r.Model,
		Horizon:    r.Horizon.String(),
		Status:     r.Status,
		Instants:   r.Instants,
		Digest:     r.Digest,
	}
}

// openExistingStore opens a database for reading. Unlike store.Open it
// refuses to create one.
func openExistingStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		msg := fmt.Sprintf("database not found: %s", path)
		formatter.Error(ErrCodeNotFound, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}
	st, err := store.Open(path)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// readRun loads a run, reporting a missing one as a command error.
func readRun(ctx context.Context, formatter *OutputFormatter, st *store.Store, id string) (store.Run, error) {
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		msg := fmt.Sprintf("run not found: %s", id)
		formatter.Error(ErrCodeNotFound, msg, nil)
		return store.Run{}, NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return store.Run{}, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return run, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
