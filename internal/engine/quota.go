package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/simkernel/internal/simtime"
)

// QuotaEnforcer counts task steps within one simulated instant and
// enforces a maximum.
//
// A task that re-awaits a condition which already holds is woken again at
// the same instant, forever. Simulated time never advances past it, so the
// quota is the only thing that ends such a run.
type QuotaEnforcer struct {
	maxSteps int
	instant  simtime.Duration
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
//
// A limit of zero or less disables enforcement.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step at instant and validates against the limit. The
// count restarts whenever the instant changes.
//
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(instant simtime.Duration) error {
	if instant != q.instant {
		q.instant = instant
		q.current = 0
	}
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{
			Time:  instant,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the step count at the current instant.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when an instant exceeds the max steps
// quota. It ends the run.
type StepsExceededError struct {
	Time  simtime.Duration // The instant that exceeded the quota
	Steps int              // Number of steps taken
	Limit int              // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("instant %s exceeded max steps quota: %d steps > %d limit",
		e.Time, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
