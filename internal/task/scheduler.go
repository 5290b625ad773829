package task

import (
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/timeline"
)

// Reader reads cell state as of the current point of a run.
type Reader interface {
	Get(q timeline.Querier) any
}

// Emitter records events on the current point of a run.
type Emitter interface {
	Emit(ev timeline.Event)
}

// Scheduler is what a stepping task sees of the engine.
type Scheduler interface {
	Reader
	Emitter

	// Now returns the simulated time of the current step.
	Now() simtime.Duration

	// Spawn starts child concurrently with the remainder of the current
	// step and returns its id. The caller does not wait for it.
	Spawn(span ChildSpan, child Factory) ID

	// StartActivity opens an activity span for the current task.
	StartActivity(activityType string, args ir.Object)

	// EndActivity closes the span most recently opened by the current task.
	EndActivity()
}

// Condition is a predicate over cell state that a task can wait for.
type Condition interface {
	// NextSatisfied returns the earliest offset in [0, horizon] from the
	// current point at which the condition holds, or false if it does not
	// hold anywhere in that window.
	NextSatisfied(r Reader, horizon simtime.Duration) (simtime.Duration, bool)
}

// ConditionFunc adapts a function into a Condition.
type ConditionFunc func(r Reader, horizon simtime.Duration) (simtime.Duration, bool)

// NextSatisfied implements Condition.
func (f ConditionFunc) NextSatisfied(r Reader, horizon simtime.Duration) (simtime.Duration, bool) {
	return f(r, horizon)
}

// Get reads the typed model of q.
func Get[E, F, M any](r Reader, q *timeline.Query[E, F, M]) M {
	return r.Get(q).(M)
}

// Emit records a typed event for q.
func Emit[E, F, M any](e Emitter, q *timeline.Query[E, F, M], event E) {
	e.Emit(q.Event(event))
}
