package task

import (
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/timeline"
)

// Body is straight-line task code. It suspends by calling the blocking
// methods of Context and returns the task's result.
type Body func(ctx *Context) any

// thread runs a Body on its own goroutine and hands control back and forth
// with the stepping loop, so exactly one side runs at a time.
type thread struct {
	body     Body
	started  bool
	finished bool
	resume   chan Scheduler
	yield    chan Status
	done     chan struct{}
}

// threadPanic carries a panic from the body goroutine to the stepping
// goroutine.
type threadPanic struct {
	value any
}

func (threadPanic) status() {}

// released unwinds a body goroutine after Release.
type released struct{}

// Go returns a factory for tasks that run body on a dedicated goroutine.
//
// The goroutine exists only while the task is suspended mid-body. Release
// stops it.
func Go(body Body) Factory {
	return func() Task {
		return &thread{
			body:   body,
			resume: make(chan Scheduler),
			yield:  make(chan Status),
			done:   make(chan struct{}),
		}
	}
}

// Step implements Task.
func (t *thread) Step(s Scheduler) Status {
	if t.finished {
		panic("task: step of a finished thread")
	}
	if !t.started {
		t.started = true
		go t.run()
	}
	t.resume <- s
	st := <-t.yield
	switch st := st.(type) {
	case threadPanic:
		t.finished = true
		panic(st.value)
	case Completed:
		t.finished = true
	}
	return st
}

// Release implements Task.
func (t *thread) Release() {
	if t.finished {
		return
	}
	t.finished = true
	if t.started {
		close(t.done)
	}
}

func (t *thread) run() {
	var s Scheduler
	select {
	case s = <-t.resume:
	case <-t.done:
		return
	}
	ctx := &Context{thread: t, sched: s}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(released); ok {
				return
			}
			t.yield <- threadPanic{value: r}
		}
	}()
	result := t.body(ctx)
	t.yield <- Completed{Value: result}
}

// Context is the view a Body has of the run. Its blocking methods suspend
// the body until the stepping loop resumes the task.
type Context struct {
	thread *thread
	sched  Scheduler
}

func (c *Context) suspend(st Status) {
	c.thread.yield <- st
	select {
	case s := <-c.thread.resume:
		c.sched = s
	case <-c.thread.done:
		panic(released{})
	}
}

// Now returns the current simulated time.
func (c *Context) Now() simtime.Duration { return c.sched.Now() }

// Get implements Reader.
func (c *Context) Get(q timeline.Querier) any { return c.sched.Get(q) }

// Emit implements Emitter.
func (c *Context) Emit(ev timeline.Event) { c.sched.Emit(ev) }

// Spawn starts child without waiting for it.
func (c *Context) Spawn(span ChildSpan, child Factory) ID {
	return c.sched.Spawn(span, child)
}

// StartActivity opens an activity span.
func (c *Context) StartActivity(activityType string, args ir.Object) {
	c.sched.StartActivity(activityType, args)
}

// EndActivity closes the current activity span.
func (c *Context) EndActivity() { c.sched.EndActivity() }

// Delay suspends for d of simulated time.
func (c *Context) Delay(d simtime.Duration) {
	c.suspend(Delayed{Duration: d, Next: c.thread})
}

// Call runs child to completion before continuing, and returns the value
// child completed with.
func (c *Context) Call(span ChildSpan, child Factory) any {
	var out any
	c.suspend(CallingTask{Span: span, Child: Capture(child, &out), Next: c.thread})
	return out
}

// WaitUntil suspends until cond holds.
func (c *Context) WaitUntil(cond Condition) {
	c.suspend(AwaitingCondition{Condition: cond, Next: c.thread})
}
