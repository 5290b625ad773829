package resource

import (
	"fmt"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
	"github.com/roach88/simkernel/internal/timeline"
)

// RealResource is a named resource with real-valued dynamics.
type RealResource interface {
	Name() string
	Real(r task.Reader) RealDynamics
}

// DiscreteResource is a named resource with piecewise-constant dynamics.
type DiscreteResource interface {
	Name() string
	Discrete(r task.Reader) Discrete
}

// Delta is an accumulator event: an instantaneous change of value and of
// rate. Deltas compose by addition, so concurrent writers never conflict.
type Delta struct {
	Value float64
	Rate  float64
}

func (d Delta) String() string {
	switch {
	case d.Rate == 0:
		return fmt.Sprintf("%+g", d.Value)
	case d.Value == 0:
		return fmt.Sprintf("%+g/s", d.Rate)
	default:
		return fmt.Sprintf("%+g%+g/s", d.Value, d.Rate)
	}
}

// AccumulatorState is the model of an accumulator cell. Integral is the
// running integral of Value since the start of the run.
type AccumulatorState struct {
	Value    float64
	Rate     float64
	Integral float64
}

type deltaProjection struct{}

func (deltaProjection) Empty() Delta { return Delta{} }

func (deltaProjection) Sequentially(a, b Delta) Delta {
	return Delta{Value: a.Value + b.Value, Rate: a.Rate + b.Rate}
}

func (deltaProjection) Concurrently(a, b Delta) Delta {
	return Delta{Value: a.Value + b.Value, Rate: a.Rate + b.Rate}
}

func (deltaProjection) Atom(e Delta) Delta { return e }

type accumulatorApplicator struct {
	initial AccumulatorState
}

func (a accumulatorApplicator) Initial() AccumulatorState { return a.initial }

func (accumulatorApplicator) Duplicate(m AccumulatorState) AccumulatorState { return m }

func (accumulatorApplicator) Step(m AccumulatorState, elapsed simtime.Duration) AccumulatorState {
	s := elapsed.Seconds()
	return AccumulatorState{
		Value:    m.Value + m.Rate*s,
		Rate:     m.Rate,
		Integral: m.Integral + m.Value*s + m.Rate*s*s/2,
	}
}

func (accumulatorApplicator) Apply(m AccumulatorState, d Delta) AccumulatorState {
	m.Value += d.Value
	m.Rate += d.Rate
	return m
}

// Accumulator is a real cell with linear dynamics.
type Accumulator struct {
	query *timeline.Query[Delta, Delta, AccumulatorState]
}

// NewAccumulator registers an accumulator cell starting at value with the
// given rate per second.
func NewAccumulator(b *timeline.Builder, name string, value, rate float64) *Accumulator {
	app := accumulatorApplicator{initial: AccumulatorState{Value: value, Rate: rate}}
	return &Accumulator{query: timeline.Register[Delta, Delta, AccumulatorState](b, name, deltaProjection{}, app)}
}

// Name implements RealResource.
func (a *Accumulator) Name() string { return a.query.Name() }

// Query returns the underlying cell.
func (a *Accumulator) Query() *timeline.Query[Delta, Delta, AccumulatorState] { return a.query }

// State reads the current model.
func (a *Accumulator) State(r task.Reader) AccumulatorState {
	return task.Get(r, a.query)
}

// Real implements RealResource.
func (a *Accumulator) Real(r task.Reader) RealDynamics {
	s := a.State(r)
	return Linear{Initial: s.Value, Rate: s.Rate}
}

// Value returns the current value.
func (a *Accumulator) Value(r task.Reader) float64 { return a.State(r).Value }

// Add changes the value by delta.
func (a *Accumulator) Add(e task.Emitter, delta float64) {
	task.Emit(e, a.query, Delta{Value: delta})
}

// AddRate changes the rate by delta per second.
func (a *Accumulator) AddRate(e task.Emitter, delta float64) {
	task.Emit(e, a.query, Delta{Rate: delta})
}

// Integral returns a resource tracking the integral of a over the run. Its
// dynamics are quadratic while a's rate is non-zero.
func (a *Accumulator) Integral(name string) RealResource {
	return &integral{name: name, acc: a}
}

type integral struct {
	name string
	acc  *Accumulator
}

func (i *integral) Name() string { return i.name }

func (i *integral) Real(r task.Reader) RealDynamics {
	s := i.acc.State(r)
	return Polynomial{Coefficients: []float64{s.Integral, s.Value, s.Rate / 2}}
}

type counterProjection struct{}

func (counterProjection) Empty() int64                  { return 0 }
func (counterProjection) Sequentially(a, b int64) int64 { return a + b }
func (counterProjection) Concurrently(a, b int64) int64 { return a + b }
func (counterProjection) Atom(e int64) int64            { return e }

type counterApplicator struct {
	initial int64
}

func (c counterApplicator) Initial() int64                       { return c.initial }
func (counterApplicator) Duplicate(m int64) int64                { return m }
func (counterApplicator) Step(m int64, _ simtime.Duration) int64 { return m }
func (counterApplicator) Apply(m, f int64) int64                 { return m + f }

// Counter is an integer cell changed by increments.
type Counter struct {
	query *timeline.Query[int64, int64, int64]
}

// NewCounter registers a counter starting at initial.
func NewCounter(b *timeline.Builder, name string, initial int64) *Counter {
	return &Counter{query: timeline.Register[int64, int64, int64](b, name, counterProjection{}, counterApplicator{initial: initial})}
}

// Name implements DiscreteResource.
func (c *Counter) Name() string { return c.query.Name() }

// Query returns the underlying cell.
func (c *Counter) Query() *timeline.Query[int64, int64, int64] { return c.query }

// Value returns the current count.
func (c *Counter) Value(r task.Reader) int64 { return task.Get(r, c.query) }

// Add changes the count by n.
func (c *Counter) Add(e task.Emitter, n int64) { task.Emit(e, c.query, n) }

// Discrete implements DiscreteResource.
func (c *Counter) Discrete(r task.Reader) Discrete {
	return Discrete{Value: ir.Int(c.Value(r))}
}

// Real implements RealResource so counters can be compared with thresholds.
func (c *Counter) Real(r task.Reader) RealDynamics {
	return Linear{Initial: float64(c.Value(r))}
}

// Write is the effect of register writes. Set is false when nothing was
// written.
type Write[T any] struct {
	Set      bool
	Value    T
	Conflict bool
}

// RegisterState is the model of a register cell. Conflicted is true when
// the last write merged concurrent writes of different values.
type RegisterState[T any] struct {
	Value      T
	Conflicted bool
}

type writeProjection[T any] struct {
	equal func(a, b T) bool
}

func (writeProjection[T]) Empty() Write[T] { return Write[T]{} }

func (writeProjection[T]) Sequentially(a, b Write[T]) Write[T] {
	if b.Set {
		return b
	}
	return a
}

// Concurrently keeps the left value when both sides wrote, flagging a
// conflict if they disagree.
func (p writeProjection[T]) Concurrently(a, b Write[T]) Write[T] {
	switch {
	case !a.Set:
		return b
	case !b.Set:
		return a
	}
	return Write[T]{
		Set:      true,
		Value:    a.Value,
		Conflict: a.Conflict || b.Conflict || !p.equal(a.Value, b.Value),
	}
}

func (writeProjection[T]) Atom(v T) Write[T] { return Write[T]{Set: true, Value: v} }

type registerApplicator[T any] struct {
	initial T
}

func (r registerApplicator[T]) Initial() RegisterState[T] { return RegisterState[T]{Value: r.initial} }

func (registerApplicator[T]) Duplicate(m RegisterState[T]) RegisterState[T] { return m }

func (registerApplicator[T]) Step(m RegisterState[T], _ simtime.Duration) RegisterState[T] {
	return m
}

func (registerApplicator[T]) Apply(m RegisterState[T], w Write[T]) RegisterState[T] {
	if !w.Set {
		return m
	}
	return RegisterState[T]{Value: w.Value, Conflicted: w.Conflict}
}

// Register is a cell holding the last value written.
type Register[T any] struct {
	query  *timeline.Query[T, Write[T], RegisterState[T]]
	encode func(T) ir.Value
}

// NewRegister registers a register cell. equal decides whether concurrent
// writes conflict; encode renders values as discrete dynamics.
func NewRegister[T any](b *timeline.Builder, name string, initial T, equal func(a, b T) bool, encode func(T) ir.Value) *Register[T] {
	q := timeline.Register[T, Write[T], RegisterState[T]](b, name, writeProjection[T]{equal: equal}, registerApplicator[T]{initial: initial})
	return &Register[T]{query: q, encode: encode}
}

// NewValueRegister registers a register of ir values.
func NewValueRegister(b *timeline.Builder, name string, initial ir.Value) *Register[ir.Value] {
	return NewRegister(b, name, initial, ir.Equal, func(v ir.Value) ir.Value { return v })
}

// Name implements DiscreteResource.
func (r *Register[T]) Name() string { return r.query.Name() }

// Query returns the underlying cell.
func (r *Register[T]) Query() *timeline.Query[T, Write[T], RegisterState[T]] { return r.query }

// State reads the current model.
func (r *Register[T]) State(rd task.Reader) RegisterState[T] { return task.Get(rd, r.query) }

// Value returns the current value.
func (r *Register[T]) Value(rd task.Reader) T { return r.State(rd).Value }

// Conflicted reports whether the current value came from disagreeing
// concurrent writes.
func (r *Register[T]) Conflicted(rd task.Reader) bool { return r.State(rd).Conflicted }

// Set writes v.
func (r *Register[T]) Set(e task.Emitter, v T) { task.Emit(e, r.query, v) }

// Discrete implements DiscreteResource.
func (r *Register[T]) Discrete(rd task.Reader) Discrete {
	return Discrete{Value: r.encode(r.Value(rd))}
}
