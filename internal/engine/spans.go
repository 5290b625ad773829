package engine

import (
	"fmt"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
)

// SpanID identifies an activity span. Zero means no span.
type SpanID int

// Span is an interval of simulated time attributed to an activity.
//
// Spans nest: a span opened while another is current becomes its child.
// Anonymous spans (empty Type) are opened for children called with
// task.SpanFresh and close when that child completes.
type Span struct {
	ID     SpanID
	Parent SpanID
	Type   string
	Args   ir.Object
	Task   task.ID
	Start  simtime.Duration
	End    simtime.Duration
	Ended  bool
}

// Window returns the span's extent. An open span extends to until.
func (s Span) Window(until simtime.Duration) simtime.Window {
	if s.Ended {
		return simtime.Between(s.Start, s.End)
	}
	return simtime.Between(s.Start, until)
}

// TaskWindow records when a task first ran and when it completed.
type TaskWindow struct {
	Task     task.ID
	Start    simtime.Duration
	End      simtime.Duration
	Started  bool
	Finished bool
}

func (e *Engine) openSpan(st *taskState, activityType string, args ir.Object) SpanID {
	id := SpanID(len(e.spans) + 1)
	e.spans = append(e.spans, Span{
		ID:     id,
		Parent: st.currentSpan(),
		Type:   activityType,
		Args:   args,
		Task:   st.id,
		Start:  e.now,
	})
	st.opened = append(st.opened, id)
	return id
}

func (e *Engine) closeSpan(st *taskState) {
	if len(st.opened) == 0 {
		panic(fmt.Sprintf("engine: task %s ended an activity it did not start", st.id))
	}
	id := st.opened[len(st.opened)-1]
	st.opened = st.opened[:len(st.opened)-1]
	e.endSpan(id)
}

func (e *Engine) endSpan(id SpanID) {
	s := &e.spans[id-1]
	s.End = e.now
	s.Ended = true
}

// closeAllSpans ends every span a completing task still holds. Typed spans
// left open are a modelling mistake worth a warning.
func (e *Engine) closeAllSpans(st *taskState) {
	for i := len(st.opened) - 1; i >= 0; i-- {
		id := st.opened[i]
		if typ := e.spans[id-1].Type; typ != "" {
			e.logger.Warn("task completed with open activity span",
				"task", st.id,
				"span", id,
				"type", typ,
				"time", e.now,
			)
		}
		e.endSpan(id)
	}
	st.opened = nil
}

// Spans returns every span opened so far in opening order.
func (e *Engine) Spans() []Span {
	out := make([]Span, len(e.spans))
	copy(out, e.spans)
	return out
}

// Windows returns the execution window of every task in creation order.
func (e *Engine) Windows() []TaskWindow {
	out := make([]TaskWindow, 0, len(e.order))
	for _, id := range e.order {
		st := e.tasks[id]
		out = append(out, TaskWindow{
			Task:     id,
			Start:    st.start,
			End:      st.end,
			Started:  st.started,
			Finished: st.state == stateCompleted,
		})
	}
	return out
}

// Unfinished returns the tasks that have not completed, in creation order.
func (e *Engine) Unfinished() []task.ID {
	var out []task.ID
	for _, id := range e.order {
		if e.tasks[id].state != stateCompleted {
			out = append(out, id)
		}
	}
	return out
}
