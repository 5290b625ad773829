package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType is wrapped by instantiation errors for activity types the
// model does not declare.
var ErrUnknownType = errors.New("unknown activity type")

// InstantiationError reports an activity that could not be turned into a
// task. The simulation carries on without it.
type InstantiationError struct {
	ActivityID string
	Type       string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("activity %s (%s): %v", e.ActivityID, e.Type, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }

// IsInstantiationError reports whether err is an InstantiationError.
func IsInstantiationError(err error) bool {
	var ie *InstantiationError
	return errors.As(err, &ie)
}

// ArgumentError lists everything wrong with an activity's arguments.
type ArgumentError struct {
	Problems []string
}

func (e *ArgumentError) Error() string {
	return "invalid arguments: " + strings.Join(e.Problems, "; ")
}
