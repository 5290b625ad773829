package plan

import (
	"fmt"
	"strings"
)

// Validation error codes (E200-E209)
const (
	ErrPlanNameEmpty       = "E200" // name is required
	ErrHorizonNotPositive  = "E201" // horizon must be positive
	ErrSamplingNegative    = "E202" // sampling period must not be negative
	ErrActivityIDEmpty     = "E203" // activity id is required
	ErrDuplicateActivityID = "E204" // activity ids must be unique
	ErrActivityTypeEmpty   = "E205" // activity type is required
	ErrStartOutOfRange     = "E206" // start must fall within [0, horizon]
)

// ValidationError is one problem with a plan.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the plan's structure. Returns all errors found (does not
// fail-fast).
func Validate(p *Plan) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrPlanNameEmpty,
		})
	}
	if p.Horizon <= 0 {
		errs = append(errs, ValidationError{
			Field:   "horizon",
			Message: fmt.Sprintf("horizon must be positive, got %s", p.Horizon),
			Code:    ErrHorizonNotPositive,
		})
	}
	if p.SamplingPeriod < 0 {
		errs = append(errs, ValidationError{
			Field:   "sampling_period",
			Message: fmt.Sprintf("sampling period must not be negative, got %s", p.SamplingPeriod),
			Code:    ErrSamplingNegative,
		})
	}

	seen := make(map[string]bool)
	for i, a := range p.Activities {
		field := fmt.Sprintf("activities[%d]", i)

		if strings.TrimSpace(a.ID) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: "activity id is required",
				Code:    ErrActivityIDEmpty,
			})
		} else if seen[a.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate activity id: %q", a.ID),
				Code:    ErrDuplicateActivityID,
			})
		}
		seen[a.ID] = true

		if strings.TrimSpace(a.Type) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: "activity type is required",
				Code:    ErrActivityTypeEmpty,
			})
		}
		if a.Start < 0 || (p.Horizon > 0 && a.Start > p.Horizon) {
			errs = append(errs, ValidationError{
				Field:   field + ".start",
				Message: fmt.Sprintf("start %s is outside the horizon [0, %s]", a.Start, p.Horizon),
				Code:    ErrStartOutOfRange,
			})
		}
	}

	return errs
}
