// Package frame reconciles the jobs stepped within one simulated instant
// into a single event graph.
//
// A frame runs a job with a step function. The step may emit events, read
// cell state, and signal further jobs. A signaled job runs concurrently with
// whatever the signaling branch does next: both continue from a fork of the
// history at the signal, and neither observes the other. Once every job has
// run, the branches are joined in reverse signal order, and the emitted
// events are reassembled into a graph with the same shape.
package frame

import (
	"github.com/roach88/simkernel/internal/graph"
	"github.com/roach88/simkernel/internal/timeline"
)

// Step runs one job within a frame.
type Step[J any] func(f *Frame[J], job J)

// Frame is the state of one branch while its job is being stepped.
type Frame[J any] struct {
	tip      timeline.History
	events   []timeline.Event
	branches []branch[J]
}

type branch[J any] struct {
	segment []timeline.Event
	base    timeline.History
	job     J
}

// Emit records ev at the tip of the current branch.
func (f *Frame[J]) Emit(ev timeline.Event) {
	f.events = append(f.events, ev)
	f.tip = f.tip.Emit(ev)
}

// Signal schedules job to run concurrently with the rest of the current
// branch. It starts from the history as of this call.
func (f *Frame[J]) Signal(job J) {
	base := f.tip
	f.branches = append(f.branches, branch[J]{segment: f.events, base: base, job: job})
	f.events = nil
	f.tip = base.Fork()
}

// Get returns the model of q as seen by the current branch.
func (f *Frame[J]) Get(q timeline.Querier) any {
	return q.ModelAt(f.tip)
}

// History returns the tip of the current branch.
func (f *Frame[J]) History() timeline.History {
	return f.tip
}

// Run steps job starting from start, then every job signaled along the way,
// and returns the combined event graph with the joined history.
//
// The returned history has the same fork base as start.
func Run[J any](job J, start timeline.History, step Step[J]) (graph.Graph[timeline.Event], timeline.History) {
	f := &Frame[J]{tip: start}
	step(f, job)

	out := graph.Atoms(f.events...)
	tip := f.tip
	for i := len(f.branches) - 1; i >= 0; i-- {
		b := f.branches[i]
		g, end := Run(b.job, b.base.Fork(), step)
		out = graph.Sequentially(graph.Atoms(b.segment...), graph.Concurrently(out, g))
		tip = tip.Join(end)
	}
	return out, tip
}

// IsFanout reports whether every event of g has a single causal past: no
// sequential composition has a concurrent node in its prefix.
func IsFanout[J any](g graph.Graph[J]) bool {
	switch g.Kind() {
	case graph.KindEmpty, graph.KindAtom:
		return true
	case graph.KindSequential:
		prefix, suffix := g.Children()
		return !hasConcurrency(prefix) && IsFanout(suffix)
	default:
		left, right := g.Children()
		return IsFanout(left) && IsFanout(right)
	}
}

func hasConcurrency[J any](g graph.Graph[J]) bool {
	switch g.Kind() {
	case graph.KindConcurrent:
		return true
	case graph.KindSequential:
		prefix, suffix := g.Children()
		return hasConcurrency(prefix) || hasConcurrency(suffix)
	default:
		return false
	}
}

// RunTree steps each atom of jobs with exactly the history its position in
// the tree entitles it to, and returns the reassembled graph.
//
// jobs must satisfy IsFanout. A job that follows a concurrent node would
// need two incomparable histories at once, which cannot be constructed;
// RunTree panics on such trees.
func RunTree[J any](jobs graph.Graph[J], start timeline.History, atom func(f *Frame[graph.Graph[J]], job J)) (graph.Graph[timeline.Event], timeline.History) {
	if !IsFanout(jobs) {
		panic("frame: job tree sequences work after a concurrent node")
	}
	var walk Step[graph.Graph[J]]
	walk = func(f *Frame[graph.Graph[J]], g graph.Graph[J]) {
		switch g.Kind() {
		case graph.KindEmpty:
		case graph.KindAtom:
			atom(f, g.Atom())
		case graph.KindSequential:
			prefix, suffix := g.Children()
			walk(f, prefix)
			walk(f, suffix)
		case graph.KindConcurrent:
			left, right := g.Children()
			f.Signal(right)
			walk(f, left)
		}
	}
	return Run(jobs, start, walk)
}
