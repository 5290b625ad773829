package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/simkernel/internal/model"
	"github.com/roach88/simkernel/internal/plan"
)

// Model-aware validation error codes (E210-E219). Structural codes
// E200-E209 come from the plan package.
const (
	ErrUnknownActivityType = "E210" // type not declared by the model
	ErrInvalidArguments    = "E211" // arguments rejected by the activity type
)

// ValidationError is the plan package's error type; compiler codes share
// its shape.
type ValidationError = plan.ValidationError

// Validate checks p's structure and then every activity against the
// model's activity types. Returns all errors found (does not fail-fast).
func Validate(p *plan.Plan, types *model.Registry) []ValidationError {
	errs := plan.Validate(p)

	for i, a := range p.Activities {
		if a.Type == "" {
			continue
		}
		field := fmt.Sprintf("activities[%d]", i)

		typ, ok := types.Lookup(a.Type)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unknown activity type %q (known: %v)", a.Type, types.Names()),
				Code:    ErrUnknownActivityType,
			})
			continue
		}

		if _, err := typ.Bind(a.Args); err != nil {
			var ae *model.ArgumentError
			if errors.As(err, &ae) {
				for _, problem := range ae.Problems {
					errs = append(errs, ValidationError{
						Field:   field + ".args",
						Message: problem,
						Code:    ErrInvalidArguments,
					})
				}
				continue
			}
			errs = append(errs, ValidationError{
				Field:   field + ".args",
				Message: err.Error(),
				Code:    ErrInvalidArguments,
			})
		}
	}

	return errs
}
