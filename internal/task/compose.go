package task

import (
	"fmt"

	"github.com/roach88/simkernel/internal/simtime"
)

// cursor runs a list of tasks one after another as a single task.
type cursor struct {
	factories []Factory
	next      int
	current   Task
}

// Sequence returns a task that runs each factory's task to completion in
// order. It completes with the value of the last one.
func Sequence(factories ...Factory) Task {
	return &cursor{factories: factories}
}

// Step implements Task.
func (c *cursor) Step(s Scheduler) Status {
	for {
		if c.current == nil {
			if c.next == len(c.factories) {
				return Completed{}
			}
			c.current = c.factories[c.next]()
			c.next++
		}

		st := c.current.Step(s)
		next := Continuation(st)
		if next == nil {
			c.current = nil
			if c.next == len(c.factories) {
				return st
			}
			continue
		}
		c.current = next
		return resumeWith(st, c)
	}
}

// Release forwards to the task currently running.
func (c *cursor) Release() {
	if c.current != nil {
		c.current.Release()
		c.current = nil
	}
}

// capture runs a task and stores the value it completes with.
type capture struct {
	current Task
	out     *any
}

// Capture returns a factory for child's tasks that store their completion
// value in *out. *out is only written when the task completes.
func Capture(child Factory, out *any) Factory {
	return func() Task {
		return &capture{current: child(), out: out}
	}
}

// Step implements Task.
func (c *capture) Step(s Scheduler) Status {
	st := c.current.Step(s)
	next := Continuation(st)
	if next == nil {
		if done, ok := st.(Completed); ok {
			*c.out = done.Value
		}
		return st
	}
	c.current = next
	return resumeWith(st, c)
}

// Release forwards to the wrapped task.
func (c *capture) Release() { c.current.Release() }

// resumeWith returns st with its continuation replaced by next.
func resumeWith(st Status, next Task) Status {
	switch st := st.(type) {
	case Delayed:
		return Delayed{Duration: st.Duration, Next: next}
	case CallingTask:
		return CallingTask{Span: st.Span, Child: st.Child, Next: next}
	case AwaitingCondition:
		return AwaitingCondition{Condition: st.Condition, Next: next}
	default:
		panic(fmt.Sprintf("task: no continuation to replace in %T", st))
	}
}

// joinPoint spawns several branches and waits for all of them.
type joinPoint struct {
	children  []Factory
	branches  []*branch
	started   bool
	remaining int
}

type branch struct {
	owner    *joinPoint
	inner    Task
	finished bool
}

// All returns a factory for a task that runs every child concurrently and
// completes once all of them have. Its Release forwards to every branch
// that has not finished.
func All(children ...Factory) Factory {
	return func() Task {
		return &joinPoint{children: children}
	}
}

// Step implements Task.
func (j *joinPoint) Step(s Scheduler) Status {
	if !j.started {
		j.started = true
		j.remaining = len(j.children)
		for _, child := range j.children {
			b := &branch{owner: j, inner: child()}
			j.branches = append(j.branches, b)
			s.Spawn(SpanParent, func() Task { return b })
		}
	}
	if j.remaining == 0 {
		return Completed{}
	}
	return AwaitingCondition{Condition: ConditionFunc(j.settled), Next: j}
}

func (j *joinPoint) settled(Reader, simtime.Duration) (simtime.Duration, bool) {
	return 0, j.remaining == 0
}

// Release implements Task.
func (j *joinPoint) Release() {
	for _, b := range j.branches {
		b.Release()
	}
}

// Step implements Task.
func (b *branch) Step(s Scheduler) Status {
	st := b.inner.Step(s)
	if next := Continuation(st); next != nil {
		b.inner = next
		return resumeWith(st, b)
	}
	b.finished = true
	b.owner.remaining--
	return st
}

// Release implements Task.
func (b *branch) Release() {
	if b.finished {
		return
	}
	b.finished = true
	b.inner.Release()
}
