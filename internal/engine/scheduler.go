package engine

import (
	"github.com/roach88/simkernel/internal/frame"
	"github.com/roach88/simkernel/internal/graph"
	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
	"github.com/roach88/simkernel/internal/timeline"
)

// scheduler is the task.Scheduler handed to one step of one task. Reads
// and writes go to the branch of the frame the task is running on.
type scheduler struct {
	engine *Engine
	frame  *frame.Frame[graph.Graph[task.ID]]
	task   *taskState
}

var _ task.Scheduler = (*scheduler)(nil)

func (s *scheduler) Get(q timeline.Querier) any { return s.frame.Get(q) }
func (s *scheduler) Emit(ev timeline.Event)     { s.frame.Emit(ev) }
func (s *scheduler) Now() simtime.Duration      { return s.engine.now }

// Spawn registers child and runs its first step on a new branch of the
// current instant.
func (s *scheduler) Spawn(span task.ChildSpan, child task.Factory) task.ID {
	st := s.engine.spawn(s.task, span, child, "")
	st.state = stateScheduled
	s.frame.Signal(graph.Atom(st.id))
	return st.id
}

func (s *scheduler) StartActivity(activityType string, args ir.Object) {
	s.engine.openSpan(s.task, activityType, args)
}

func (s *scheduler) EndActivity() {
	s.engine.closeSpan(s.task)
}
