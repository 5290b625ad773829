package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/simkernel/internal/driver"
	"github.com/roach88/simkernel/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Activity string // optional - filter to one planned activity
	Events   bool   // include per-instant event graphs
}

// TraceSpan is one span in the trace output.
type TraceSpan struct {
	ID       int64     `json:"id"`
	Parent   int64     `json:"parent,omitempty"`
	Type     string    `json:"type,omitempty"`
	Activity string    `json:"activity,omitempty"`
	Args     ir.Object `json:"args,omitempty"`
	Start    string    `json:"start"`
	End      string    `json:"end,omitempty"`
	Open     bool      `json:"open,omitempty"`
	Depth    int       `json:"-"`
}

// TraceEvent is the event graph one instant emitted on one topic.
type TraceEvent struct {
	Time  string `json:"time"`
	Topic string `json:"topic"`
	Graph string `json:"graph"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run    RunInfo      `json:"run"`
	Spans  []TraceSpan  `json:"spans"`
	Events []TraceEvent `json:"events,omitempty"`
	Stats  TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Spans      int `json:"spans"`
	Activities int `json:"activities"`
	Open       int `json:"open"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Show the span tree of a recorded run",
		Long: `Show the activity spans of a recorded run as a tree.

Each planned activity opens a root span; spans its task opens while
running nest under it. Spans still open at the horizon are marked.
With --events, the events each instant emitted are listed per topic;
"a; b" means a happened before b and "a | b" means concurrently.

Examples:
  simkernel trace --db runs.db 0192f3c1-...
  simkernel trace --db runs.db 0192f3c1-... --activity snack
  simkernel trace --db runs.db 0192f3c1-... --events
  simkernel trace --db runs.db 0192f3c1-... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Activity, "activity", "", "only show spans of this planned activity")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "list the event graph of each instant")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
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

	spans, err := st.LoadSpans(ctx, runID)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load spans", err)
	}
	formatter.VerboseLog("Loaded %d spans for run %s", len(spans), runID)

	result := buildTrace(runInfo(run), spans, opts.Activity)
	if opts.Events {
		events, err := st.LoadEvents(ctx, runID)
		if err != nil {
			formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load events", err)
		}
		formatter.VerboseLog("Loaded %d event graphs for run %s", len(events), runID)
		result.Events = traceEvents(events)
	}
	return formatter.Success(result)
}

func traceEvents(events []driver.EventRecord) []TraceEvent {
	out := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, TraceEvent{Time: ev.Time.String(), Topic: ev.Topic, Graph: ev.Graph})
	}
	return out
}

// buildTrace orders spans depth first, each parent before its children.
func buildTrace(run RunInfo, spans []driver.SpanRecord, activity string) TraceResult {
	children := make(map[int64][]driver.SpanRecord)
	for _, s := range spans {
		if activity != "" && s.ActivityID != activity {
			continue
		}
		children[int64(s.Parent)] = append(children[int64(s.Parent)], s)
	}

	result := TraceResult{Run: run, Spans: []TraceSpan{}}
	activities := make(map[string]bool)

	var walk func(parent int64, depth int)
	walk = func(parent int64, depth int) {
		for _, s := range children[parent] {
			ts := TraceSpan{
				ID:       int64(s.ID),
				Parent:   int64(s.Parent),
				Type:     s.Type,
				Activity: s.ActivityID,
				Start:    s.Start.String(),
				Open:     !s.Ended,
				Depth:    depth,
			}
			if s.Ended {
				ts.End = s.End.String()
			}
			if len(s.Args) > 0 {
				ts.Args = s.Args
			}
			result.Spans = append(result.Spans, ts)
			if ts.Open {
				result.Stats.Open++
			}
			if s.ActivityID != "" {
				activities[s.ActivityID] = true
			}
			walk(int64(s.ID), depth+1)
		}
	}
	walk(0, 0)

	result.Stats.Spans = len(result.Spans)
	result.Stats.Activities = len(activities)
	return result
}

// WriteText implements textWriter.
func (r TraceResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Run %s: %s on %s (%s, %s)\n", r.Run.ID, r.Run.Plan, r.Run.Model, r.Run.Horizon, r.Run.Status)
	fmt.Fprintln(w)
	for _, s := range r.Spans {
		typ := s.Type
		if typ == "" {
			typ = "(anonymous)"
		}
		window := s.Start + ".." + s.End
		if s.Open {
			window = s.Start + "..open"
		}
		label := ""
		if s.Depth == 0 && s.Activity != "" {
			label = " [" + s.Activity + "]"
		}
		fmt.Fprintf(w, "%s%s%s %s\n", strings.Repeat("  ", s.Depth), typ, label, window)
	}
	if r.Events != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Events")
		for _, ev := range r.Events {
			fmt.Fprintf(w, "  %s  %s: %s\n", ev.Time, ev.Topic, ev.Graph)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d spans, %d activities, %d open\n", r.Stats.Spans, r.Stats.Activities, r.Stats.Open)
	return nil
}
