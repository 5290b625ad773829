package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/profile"
	"github.com/roach88/simkernel/internal/resource"
)

// ProfilesOptions holds flags for the profiles command.
type ProfilesOptions struct {
	*RootOptions
	Database  string
	Resources []string
}

// ProfileOutput is one resource profile.
type ProfileOutput struct {
	Resource string          `json:"resource"`
	Kind     string          `json:"kind"`
	Segments []SegmentOutput `json:"segments"`
}

// SegmentOutput is one profile segment. Start and Length are microseconds.
type SegmentOutput struct {
	Start    int64    `json:"start"`
	Length   int64    `json:"length"`
	Dynamics ir.Value `json:"dynamics"`
	display  string
	window   string
}

// ProfilesResult holds the profiles of one run.
type ProfilesResult struct {
	Run      RunInfo         `json:"run"`
	Profiles []ProfileOutput `json:"profiles"`
}

// NewProfilesCommand creates the profiles command.
func NewProfilesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProfilesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "profiles <run-id>",
		Short: "Show the resource profiles of a recorded run",
		Long: `Show the resource profiles of a recorded run.

A profile is a resource's value over the horizon as a sequence of
segments, each holding the dynamics the resource followed for its length.

Examples:
  simkernel profiles --db runs.db 0192f3c1-...
  simkernel profiles --db runs.db 0192f3c1-... --resource fruit --resource peel`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringArrayVar(&opts.Resources, "resource", nil, "only show these resources (repeatable)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runProfiles(opts *ProfilesOptions, runID string, cmd *cobra.Command) error {
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
	run, err := readRun(ctx, formatter, st, runID)
	if err != nil {
		return err
	}

	profiles, err := st.LoadProfiles(ctx, runID)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load profiles", err)
	}

	result := ProfilesResult{Run: runInfo(run), Profiles: []ProfileOutput{}}
	for _, p := range profiles {
		if len(opts.Resources) > 0 && !slices.Contains(opts.Resources, p.Resource) {
			continue
		}
		result.Profiles = append(result.Profiles, profileOutput(p))
	}
	for _, name := range opts.Resources {
		if !slices.ContainsFunc(result.Profiles, func(p ProfileOutput) bool { return p.Resource == name }) {
			msg := fmt.Sprintf("no profile for resource %q in run %s", name, runID)
			formatter.Error(ErrCodeNotFound, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
	}
	return formatter.Success(result)
}

func profileOutput(p profile.Profile) ProfileOutput {
	out := ProfileOutput{Resource: p.Resource, Kind: p.Kind, Segments: make([]SegmentOutput, 0, len(p.Segments))}
	for _, seg := range p.Segments {
		out.Segments = append(out.Segments, SegmentOutput{
			Start:    int64(seg.Start),
			Length:   int64(seg.Length),
			Dynamics: resource.Encode(seg.Dynamics),
			display:  formatDynamics(seg.Dynamics),
			window:   fmt.Sprintf("[%s, %s)", seg.Start, seg.End()),
		})
	}
	return out
}

// WriteText implements textWriter.
func (r ProfilesResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Run %s: %s (%s)\n", r.Run.ID, r.Run.Plan, r.Run.Horizon)
	for _, p := range r.Profiles {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s (%s, %d segments)\n", p.Resource, p.Kind, len(p.Segments))
		for _, seg := range p.Segments {
			fmt.Fprintf(w, "  %-20s %s\n", seg.window, seg.display)
		}
	}
	return nil
}
