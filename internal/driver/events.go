package driver

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/simkernel/internal/engine"
	"github.com/roach88/simkernel/internal/graph"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/timeline"
)

// EventRecord is the event graph one topic received in one stepped
// instant, rendered by graph.Display: "a; b" for events in sequence and
// "a | b" for concurrent ones.
type EventRecord struct {
	Time  simtime.Duration
	Topic string
	Graph string
}

// eventRecords splits a commit into one record per topic, ordered by
// topic. An instant without events yields none.
func eventRecords(c engine.Commit) []EventRecord {
	var out []EventRecord
	for _, topic := range topics(c.Graph) {
		g := graph.Filter(c.Graph, func(ev timeline.Event) bool { return ev.Topic() == topic })
		out = append(out, EventRecord{
			Time:  c.Time,
			Topic: topic,
			Graph: graph.Display(g, func(ev timeline.Event) string { return fmt.Sprint(ev.Value()) }),
		})
	}
	return out
}

func topics(g graph.Graph[timeline.Event]) []string {
	seen := make(map[string]struct{})
	none := func(_, _ struct{}) struct{} { return struct{}{} }
	graph.Evaluate(g, graph.Funcs[struct{}]{
		EmptyFunc:        func() struct{} { return struct{}{} },
		SequentiallyFunc: none,
		ConcurrentlyFunc: none,
	}, func(ev timeline.Event) struct{} {
		seen[ev.Topic()] = struct{}{}
		return struct{}{}
	})
	return slices.Sorted(maps.Keys(seen))
}
