package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/simkernel/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Model string
}

// PlanValidation is the validation outcome of one plan file.
type PlanValidation struct {
	File   string                     `json:"file"`
	Plan   string                     `json:"plan"`
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// ValidationResult holds validation results for every plan checked.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Plans []PlanValidation `json:"plans"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <plan>...",
		Short: "Validate plans without simulating",
		Long: `Validate plans against a mission model without simulating them.

Checks plan structure (names, horizon, activity IDs and start times) and
every activity against the model: its type must exist and its arguments
must bind to the type's parameters. All errors are reported, not just the
first.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "banana", "mission model to validate against")

	return cmd
}

func runValidate(opts *ValidateOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctor, err := opts.catalog().Lookup(opts.Model)
	if err != nil {
		formatter.Error(ErrCodeUnknownModel, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown model", err)
	}
	types := ctor().Activities

	plans, files, err := loadPlans(args, formatter)
	if err != nil {
		return err
	}

	result := ValidationResult{Valid: true, Plans: make([]PlanValidation, 0, len(plans))}
	invalid := 0
	for i, p := range plans {
		formatter.VerboseLog("Validating %s (%d activities)", files[i], len(p.Activities))
		errs := compiler.Validate(p, types)
		result.Plans = append(result.Plans, PlanValidation{
			File:   files[i],
			Plan:   p.Name,
			Valid:  len(errs) == 0,
			Errors: errs,
		})
		if len(errs) > 0 {
			invalid++
			result.Valid = false
		}
	}

	if invalid > 0 {
		if err := formatter.Failure(result, ErrCodeInvalidPlan, fmt.Sprintf("%d plan(s) failed validation", invalid)); err != nil {
			return WrapExitError(ExitFailure, "validation failed", err)
		}
		return NewExitError(ExitFailure, "validation failed")
	}
	return formatter.Success(result)
}

// WriteText implements textWriter.
func (r ValidationResult) WriteText(w io.Writer) error {
	for _, p := range r.Plans {
		if err := p.WriteText(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteText implements textWriter.
func (p PlanValidation) WriteText(w io.Writer) error {
	if len(p.Errors) == 0 {
		_, err := fmt.Fprintf(w, "✓ %s (%s)\n", p.Plan, p.File)
		return err
	}
	fmt.Fprintf(w, "✗ %s (%s)\n", p.Plan, p.File)
	for _, e := range p.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
	return nil
}
