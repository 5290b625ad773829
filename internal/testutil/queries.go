package testutil

import (
	"github.com/roach88/simkernel/internal/graph"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/timeline"
)

// SumProjection reduces integer events by addition.
type SumProjection struct{}

func (SumProjection) Empty() int                { return 0 }
func (SumProjection) Sequentially(a, b int) int { return a + b }
func (SumProjection) Concurrently(a, b int) int { return a + b }
func (SumProjection) Atom(e int) int            { return e }

// SumApplicator keeps a running integer total.
type SumApplicator struct{}

func (SumApplicator) Initial() int                       { return 0 }
func (SumApplicator) Duplicate(m int) int                { return m }
func (SumApplicator) Step(m int, _ simtime.Duration) int { return m }
func (SumApplicator) Apply(m, f int) int                 { return m + f }

// LogProjection turns each event into a single-atom graph.
type LogProjection struct {
	graph.Identity[int]
}

func (LogProjection) Atom(e int) graph.Graph[int] { return graph.Atom(e) }

// LogApplicator keeps the graph of every event observed so far.
type LogApplicator struct{}

func (LogApplicator) Initial() graph.Graph[int] { return graph.Empty[int]() }

func (LogApplicator) Duplicate(m graph.Graph[int]) graph.Graph[int] { return m }

func (LogApplicator) Step(m graph.Graph[int], _ simtime.Duration) graph.Graph[int] { return m }

func (LogApplicator) Apply(m, f graph.Graph[int]) graph.Graph[int] {
	return graph.Sequentially(m, f)
}

// Queries is a small schema with an integer sum and an event log.
type Queries struct {
	Schema *timeline.Schema
	Sum    *timeline.Query[int, int, int]
	Log    *timeline.Query[int, graph.Graph[int], graph.Graph[int]]
}

// NewQueries builds the schema.
func NewQueries() *Queries {
	b := timeline.NewBuilder()
	q := &Queries{
		Sum: timeline.Register[int, int, int](b, "sum", SumProjection{}, SumApplicator{}),
		Log: timeline.Register[int, graph.Graph[int], graph.Graph[int]](b, "log", LogProjection{}, LogApplicator{}),
	}
	q.Schema = b.Build()
	return q
}
