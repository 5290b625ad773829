package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/simkernel/internal/model"
	"github.com/roach88/simkernel/internal/model/banana"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Catalog resolves --model names. Defaults to DefaultCatalog.
	Catalog *model.Catalog
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultCatalog returns the models built into the binary.
func DefaultCatalog() *model.Catalog {
	c := model.NewCatalog()
	c.Add(banana.Name, banana.New)
	return c
}

// NewRootCommand creates the root command for the simkernel CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Catalog: DefaultCatalog()}

	cmd := &cobra.Command{
		Use:   "simkernel",
		Short: "simkernel - discrete-event simulation kernel",
		Long: `Simulate activity plans against mission models.

A plan schedules activities over a horizon; the kernel steps them through
simulated time, records resource profiles and activity spans, and can
persist every run in a SQLite database for later inspection.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewProfilesCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// catalog returns the configured catalog, falling back to the default.
func (o *RootOptions) catalog() *model.Catalog {
	if o.Catalog == nil {
		o.Catalog = DefaultCatalog()
	}
	return o.Catalog
}

// logger builds the diagnostic logger: warnings only, or debug with
// --verbose. Logs always go to w, never to the JSON output stream.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
