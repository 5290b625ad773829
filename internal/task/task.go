// Package task defines the cooperative task protocol.
//
// A Task is stepped by a driving loop. Each step runs until the task either
// finishes or needs to suspend, and reports which through a Status:
//
//	Completed          the task is done; no continuation
//	Delayed            resume Next after a span of simulated time
//	CallingTask        run Child, then resume Next once it completes
//	AwaitingCondition  resume Next once Condition holds
//
// A task never blocks the caller's goroutine to wait for simulated time. The
// loop decides when, and under which history, Next is stepped again.
package task

import (
	"github.com/roach88/simkernel/internal/simtime"
)

// Task is a suspended computation.
type Task interface {
	// Step resumes the task until its next suspension point.
	Step(s Scheduler) Status

	// Release frees any resources held by a task that will never be
	// stepped again. Wrappers forward Release to the tasks they hold.
	// Release must be safe to call more than once.
	Release()
}

// Factory creates a fresh task.
type Factory func() Task

// Status is the outcome of one step. The concrete types are Completed,
// Delayed, CallingTask and AwaitingCondition.
type Status interface {
	status()
}

// Completed reports that the task finished with Value.
type Completed struct {
	Value any
}

// Delayed asks to resume Next after Duration of simulated time.
type Delayed struct {
	Duration simtime.Duration
	Next     Task
}

// CallingTask asks to run Child and resume Next when it completes.
type CallingTask struct {
	Span  ChildSpan
	Child Factory
	Next  Task
}

// AwaitingCondition asks to resume Next at the first instant Condition holds.
type AwaitingCondition struct {
	Condition Condition
	Next      Task
}

func (Completed) status()         {}
func (Delayed) status()           {}
func (CallingTask) status()       {}
func (AwaitingCondition) status() {}

// Done returns a Completed status.
func Done(value any) Status { return Completed{Value: value} }

// Delay returns a Delayed status.
func Delay(d simtime.Duration, next Task) Status {
	return Delayed{Duration: d, Next: next}
}

// Call returns a CallingTask status.
func Call(span ChildSpan, child Factory, next Task) Status {
	return CallingTask{Span: span, Child: child, Next: next}
}

// Await returns an AwaitingCondition status.
func Await(c Condition, next Task) Status {
	return AwaitingCondition{Condition: c, Next: next}
}

// Continuation returns the task a status resumes, or nil for Completed.
func Continuation(st Status) Task {
	switch st := st.(type) {
	case Delayed:
		return st.Next
	case CallingTask:
		return st.Next
	case AwaitingCondition:
		return st.Next
	default:
		return nil
	}
}

// ChildSpan selects the activity span a child task runs in.
type ChildSpan uint8

const (
	// SpanParent runs the child inside the caller's current span.
	SpanParent ChildSpan = iota
	// SpanFresh opens a new span for the child beneath the caller's span.
	SpanFresh
)

func (c ChildSpan) String() string {
	if c == SpanFresh {
		return "fresh"
	}
	return "parent"
}

// Func adapts a function into a single-step task with nothing to release.
type Func func(s Scheduler) Status

// Step implements Task.
func (f Func) Step(s Scheduler) Status { return f(s) }

// Release implements Task.
func (Func) Release() {}
