package engine

import (
	"github.com/google/btree"

	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
)

// job is a task due to be stepped at an instant.
type job struct {
	at   simtime.Duration
	seq  uint64
	task task.ID
}

func jobLess(a, b job) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.seq < b.seq
}

// jobQueue orders pending jobs by (time, seq). seq increases with every
// Push, so jobs due at the same instant pop in scheduling order.
//
// Not safe for concurrent use; only the stepping loop touches it.
type jobQueue struct {
	tree *btree.BTreeG[job]
	seq  uint64
}

func newJobQueue() *jobQueue {
	return &jobQueue{tree: btree.NewG(32, jobLess)}
}

// Push schedules id at the given instant.
func (q *jobQueue) Push(at simtime.Duration, id task.ID) {
	q.seq++
	q.tree.ReplaceOrInsert(job{at: at, seq: q.seq, task: id})
}

// Next returns the earliest instant with a pending job.
func (q *jobQueue) Next() (simtime.Duration, bool) {
	j, ok := q.tree.Min()
	return j.at, ok
}

// PopAt removes and returns every job due at instant, in seq order.
func (q *jobQueue) PopAt(instant simtime.Duration) []task.ID {
	var out []task.ID
	for {
		j, ok := q.tree.Min()
		if !ok || j.at != instant {
			return out
		}
		q.tree.DeleteMin()
		out = append(out, j.task)
	}
}

// Len returns the number of pending jobs.
func (q *jobQueue) Len() int {
	return q.tree.Len()
}

// Clear drops every pending job.
func (q *jobQueue) Clear() {
	q.tree.Clear(false)
}
