package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/simkernel/internal/frame"
	"github.com/roach88/simkernel/internal/graph"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
	"github.com/roach88/simkernel/internal/timeline"
)

// DefaultMaxStepsPerInstant is the default maximum number of task steps
// within one simulated instant.
const DefaultMaxStepsPerInstant = 100_000

// Forever is the latest representable instant.
const Forever = simtime.Duration(math.MaxInt64)

// Commit is the event graph produced by one stepped instant.
type Commit struct {
	Time  simtime.Duration
	Graph graph.Graph[timeline.Event]
}

type taskPhase uint8

const (
	stateScheduled taskPhase = iota
	stateAwaiting
	stateCalling
	stateCompleted
	stateReleased
)

type taskState struct {
	id      task.ID
	next    task.Task
	state   taskPhase
	caller  task.ID
	cond    task.Condition
	result  any
	started bool
	start   simtime.Duration
	end     simtime.Duration

	// baseSpan is the span the task runs in; opened are the spans it has
	// started and not yet ended, innermost last.
	baseSpan SpanID
	opened   []SpanID
	fresh    SpanID
}

func (st *taskState) currentSpan() SpanID {
	if n := len(st.opened); n > 0 {
		return st.opened[n-1]
	}
	return st.baseSpan
}

// Engine is the simulation engine.
//
// Thread-safety model: an Engine is driven from one goroutine. Tasks built
// with task.Go run their bodies on other goroutines, but only while the
// stepping goroutine is blocked waiting for them.
//
// INVARIANTS:
//   - The tip never has an open fork between Steps
//   - A task is in at most one of: the job queue, the waiting list, or
//     blocked on a child
//   - Jobs at one instant run in scheduling order
type Engine struct {
	timeline *timeline.Timeline
	tip      timeline.History
	now      simtime.Duration

	queue   *jobQueue
	ids     task.IDGenerator
	tasks   map[task.ID]*taskState
	order   []task.ID
	waiting []task.ID

	spans   []Span
	commits []Commit
	last    *Commit
	keepLog bool

	quota    *QuotaEnforcer
	maxSteps int
	err      error
	closed   bool

	logger   *slog.Logger
	registry prometheus.Registerer
	runLabel string
	metrics  *metrics
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxStepsPerInstant sets the maximum task steps per instant.
//
// Default: 100000 (DefaultMaxStepsPerInstant). Zero disables the limit.
func WithMaxStepsPerInstant(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithIDGenerator sets the source of task ids.
//
// Default: task.NewSequentialGenerator("task"), which keeps runs
// reproducible.
func WithIDGenerator(ids task.IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = ids
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegisterer exports engine metrics on reg, labelled with run so that
// several engines can share one registry.
func WithRegisterer(reg prometheus.Registerer, run string) EngineOption {
	return func(e *Engine) {
		e.registry = reg
		e.runLabel = run
	}
}

// WithCommitLog controls whether committed event graphs are retained for
// Commits. Default: true.
func WithCommitLog(keep bool) EngineOption {
	return func(e *Engine) {
		e.keepLog = keep
	}
}

// New creates an engine over a fresh timeline for schema.
func New(schema *timeline.Schema, opts ...EngineOption) *Engine {
	tl := timeline.New(schema)
	e := &Engine{
		timeline: tl,
		tip:      tl.Origin(),
		queue:    newJobQueue(),
		ids:      task.NewSequentialGenerator("task"),
		tasks:    make(map[task.ID]*taskState),
		keepLog:  true,
		maxSteps: DefaultMaxStepsPerInstant,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.quota = NewQuotaEnforcer(e.maxSteps)
	e.metrics = newMetrics(e.registry, e.runLabel)
	return e
}

// Now returns the current simulated time.
func (e *Engine) Now() simtime.Duration { return e.now }

// History returns the committed tip of the timeline.
func (e *Engine) History() timeline.History { return e.tip }

// Timeline returns the engine's timeline.
func (e *Engine) Timeline() *timeline.Timeline { return e.timeline }

// Get reads the model of q at the committed tip.
func (e *Engine) Get(q timeline.Querier) any { return q.ModelAt(e.tip) }

// Commits returns the event graph of every stepped instant, oldest first.
func (e *Engine) Commits() []Commit {
	out := make([]Commit, len(e.commits))
	copy(out, e.commits)
	return out
}

// LastCommit returns the most recently stepped instant. It is available
// whether or not the commit log is kept.
func (e *Engine) LastCommit() (Commit, bool) {
	if e.last == nil {
		return Commit{}, false
	}
	return *e.last, true
}

// QueueLen returns the number of scheduled jobs.
func (e *Engine) QueueLen() int { return e.queue.Len() }

// Schedule creates a task from factory and schedules its first step delay
// after the current time.
//
// Panics if delay is negative.
func (e *Engine) Schedule(delay simtime.Duration, factory task.Factory) task.ID {
	if delay < 0 {
		panic(fmt.Sprintf("engine: schedule with negative delay %s", delay))
	}
	st := e.register(factory, "", 0)
	e.enqueue(e.now+delay, st.id)
	return st.id
}

// Result returns the value a completed task finished with.
func (e *Engine) Result(id task.ID) (any, bool, error) {
	st, ok := e.tasks[id]
	if !ok {
		return nil, false, newUnknownTaskError(id, e.now)
	}
	return st.result, st.state == stateCompleted, nil
}

// NextTime returns the earliest instant with scheduled work.
func (e *Engine) NextTime() (simtime.Duration, bool) {
	return e.queue.Next()
}

// Step runs the earliest instant with scheduled work, provided it is not
// after until. It reports whether an instant was run.
//
// Before choosing the instant, every waiting condition is searched over the
// window from now to the next scheduled job (or until, if sooner); tasks
// whose condition holds in that window are scheduled at the first instant
// it does.
func (e *Engine) Step(ctx context.Context, until simtime.Duration) (bool, error) {
	if e.closed {
		return false, newReleasedError(e.now)
	}
	if e.err != nil {
		return false, e.err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.resolveConditions(until)

	at, ok := e.queue.Next()
	if !ok || at > until {
		return false, nil
	}
	e.advance(at)

	batch := e.queue.PopAt(at)
	atoms := make([]graph.Graph[task.ID], len(batch))
	for i, id := range batch {
		atoms[i] = graph.Atom(id)
	}

	g, end := frame.RunTree(graph.Parallel(atoms...), e.tip, e.runTask)
	e.tip = end
	e.last = &Commit{Time: at, Graph: g}
	if e.keepLog {
		e.commits = append(e.commits, *e.last)
	}

	events := graph.Count(g)
	e.metrics.instants.Inc()
	e.metrics.frameEvents.Observe(float64(events))
	e.metrics.queueDepth.Set(float64(e.queue.Len()))
	e.logger.Debug("instant committed",
		"time", at,
		"jobs", len(batch),
		"events", events,
		"waiting", len(e.waiting),
	)

	if e.err != nil {
		e.logger.Error("instant aborted",
			"time", at,
			"error", e.err,
		)
		return true, e.err
	}
	return true, nil
}

// AdvanceTo moves simulated time forward to t without stepping any task.
//
// Panics if t is before now or after a scheduled job.
func (e *Engine) AdvanceTo(t simtime.Duration) {
	if next, ok := e.queue.Next(); ok && next < t {
		panic(fmt.Sprintf("engine: advance to %s skips work scheduled at %s", t, next))
	}
	e.advance(t)
}

func (e *Engine) advance(t simtime.Duration) {
	if t < e.now {
		panic(fmt.Sprintf("engine: time cannot move backward from %s to %s", e.now, t))
	}
	e.tip = e.tip.Wait(t - e.now)
	e.now = t
}

// RunUntil steps every instant up to and including end, then advances time
// to end.
func (e *Engine) RunUntil(ctx context.Context, end simtime.Duration) error {
	e.logger.Info("simulation starting",
		"from", e.now,
		"until", end,
		"scheduled", e.queue.Len(),
	)

	instants := 0
	for {
		ran, err := e.Step(ctx, end)
		if err != nil {
			return err
		}
		if !ran {
			break
		}
		instants++
	}
	if end > e.now {
		e.AdvanceTo(end)
	}

	e.logger.Info("simulation finished",
		"time", e.now,
		"instants", instants,
		"unfinished", len(e.Unfinished()),
	)
	return nil
}

// RunFor runs for d of simulated time from now.
func (e *Engine) RunFor(ctx context.Context, d simtime.Duration) error {
	return e.RunUntil(ctx, e.now+d)
}

// Close releases every task that has not completed and discards pending
// work. The engine cannot be stepped afterwards. Close is idempotent.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	for _, id := range e.order {
		st := e.tasks[id]
		if st.state == stateCompleted || st.state == stateReleased {
			continue
		}
		st.state = stateReleased
		st.next.Release()
	}
	e.queue.Clear()
	e.waiting = nil
	e.metrics.queueDepth.Set(0)
}

func (e *Engine) register(factory task.Factory, caller task.ID, base SpanID) *taskState {
	st := &taskState{
		id:       e.ids.Generate(),
		next:     factory(),
		caller:   caller,
		baseSpan: base,
	}
	e.tasks[st.id] = st
	e.order = append(e.order, st.id)
	return st
}

// spawn registers a child of parent in the given span mode.
func (e *Engine) spawn(parent *taskState, span task.ChildSpan, factory task.Factory, caller task.ID) *taskState {
	base := parent.currentSpan()
	if span == task.SpanFresh {
		fresh := Span{ID: SpanID(len(e.spans) + 1), Parent: base, Start: e.now}
		e.spans = append(e.spans, fresh)
		base = fresh.ID
	}
	child := e.register(factory, caller, base)
	if span == task.SpanFresh {
		child.fresh = base
		e.spans[base-1].Task = child.id
	}
	return child
}

func (e *Engine) enqueue(at simtime.Duration, id task.ID) {
	e.tasks[id].state = stateScheduled
	e.queue.Push(at, id)
	e.metrics.queueDepth.Set(float64(e.queue.Len()))
}

// runTask steps id, and any caller its completion wakes, until it
// suspends.
func (e *Engine) runTask(f *frame.Frame[graph.Graph[task.ID]], id task.ID) {
	for id != "" && e.err == nil {
		st := e.tasks[id]
		if err := e.quota.Check(e.now); err != nil {
			e.err = NewQuotaError(id, err.(*StepsExceededError))
			return
		}
		if !st.started {
			st.started = true
			st.start = e.now
		}

		status := st.next.Step(&scheduler{engine: e, frame: f, task: st})
		e.metrics.taskSteps.Inc()
		id = e.handle(f, st, status)
	}
}

// handle applies a task's status and returns the task to continue stepping
// in the same branch, if any.
func (e *Engine) handle(f *frame.Frame[graph.Graph[task.ID]], st *taskState, status task.Status) task.ID {
	switch s := status.(type) {
	case task.Completed:
		st.state = stateCompleted
		st.result = s.Value
		st.end = e.now
		st.next = nil
		e.closeAllSpans(st)
		if st.fresh != 0 {
			e.endSpan(st.fresh)
		}
		e.metrics.tasksCompleted.Inc()
		if st.caller == "" {
			return ""
		}
		caller := e.tasks[st.caller]
		caller.state = stateScheduled
		return caller.id

	case task.Delayed:
		if s.Duration < 0 {
			panic(fmt.Sprintf("engine: task %s delayed by negative duration %s", st.id, s.Duration))
		}
		st.next = s.Next
		e.enqueue(e.now+s.Duration, st.id)
		return ""

	case task.CallingTask:
		st.next = s.Next
		st.state = stateCalling
		child := e.spawn(st, s.Span, s.Child, st.id)
		f.Signal(graph.Atom(child.id))
		return ""

	case task.AwaitingCondition:
		st.next = s.Next
		st.state = stateAwaiting
		st.cond = s.Condition
		e.waiting = append(e.waiting, st.id)
		return ""

	default:
		e.err = newInvalidStatusError(st.id, e.now)
		return ""
	}
}

// resolveConditions schedules every waiting task whose condition holds
// before the next scheduled job or until, whichever is sooner.
func (e *Engine) resolveConditions(until simtime.Duration) {
	if len(e.waiting) == 0 {
		return
	}
	bound := until
	if next, ok := e.queue.Next(); ok && next < bound {
		bound = next
	}
	if bound < e.now {
		return
	}
	horizon := bound - e.now
	reader := historyReader{h: e.tip}

	remaining := e.waiting[:0]
	for _, id := range e.waiting {
		st := e.tasks[id]
		e.metrics.conditionChecks.Inc()
		offset, ok := st.cond.NextSatisfied(reader, horizon)
		if !ok {
			remaining = append(remaining, id)
			continue
		}
		if offset < 0 || offset > horizon {
			panic(fmt.Sprintf("engine: condition of task %s answered %s outside [0, %s]", id, offset, horizon))
		}
		st.cond = nil
		e.enqueue(e.now+offset, id)
	}
	e.waiting = remaining
}

// historyReader reads cells at a fixed history.
type historyReader struct {
	h timeline.History
}

func (r historyReader) Get(q timeline.Querier) any { return q.ModelAt(r.h) }
