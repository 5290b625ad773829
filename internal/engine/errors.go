package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
)

// RuntimeError represents an error detected while stepping tasks.
//
// Runtime errors include:
//   - Quota exceeded: an instant ran more task steps than allowed
//   - Unknown task: a lookup named a task the engine never created
//   - Invalid status: a task returned no status
//   - Released: the engine was used after Close
//
// Construction errors in the timeline or in a task graph are not runtime
// errors; they panic.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Task identifies the affected task, if any.
	Task task.ID

	// Time is the simulated instant at which the error was detected.
	Time simtime.Duration

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeQuotaExceeded indicates an instant exceeded its step quota.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnknownTask indicates a task id the engine does not know.
	ErrCodeUnknownTask RuntimeErrorCode = "UNKNOWN_TASK"

	// ErrCodeInvalidStatus indicates a task step returned no status.
	ErrCodeInvalidStatus RuntimeErrorCode = "INVALID_STATUS"

	// ErrCodeReleased indicates the engine was stepped after Close.
	ErrCodeReleased RuntimeErrorCode = "RELEASED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("%s: %s (task=%s, t=%s)", e.Code, e.Message, e.Task, e.Time)
	}
	return fmt.Sprintf("%s: %s (t=%s)", e.Code, e.Message, e.Time)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// IsUnknownTaskError returns true if the error names an unknown task.
func IsUnknownTaskError(err error) bool {
	return hasCode(err, ErrCodeUnknownTask)
}

// IsInvalidStatusError returns true if a task returned no status.
func IsInvalidStatusError(err error) bool {
	return hasCode(err, ErrCodeInvalidStatus)
}

// IsReleasedError returns true if the engine was used after Close.
func IsReleasedError(err error) bool {
	return hasCode(err, ErrCodeReleased)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewQuotaError creates a RuntimeError for an exceeded step quota.
func NewQuotaError(id task.ID, cause *StepsExceededError) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("instant exceeded max task steps (%d > %d)", cause.Steps, cause.Limit),
		Task:    id,
		Time:    cause.Time,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", cause.Steps),
			"max_steps": fmt.Sprintf("%d", cause.Limit),
		},
		Err: cause,
	}
}

func newUnknownTaskError(id task.ID, now simtime.Duration) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownTask,
		Message: "no such task",
		Task:    id,
		Time:    now,
	}
}

func newInvalidStatusError(id task.ID, now simtime.Duration) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidStatus,
		Message: "task step returned a nil status",
		Task:    id,
		Time:    now,
	}
}

func newReleasedError(now simtime.Duration) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReleased,
		Message: "engine has been closed",
		Time:    now,
	}
}
