package timeline

import (
	"fmt"

	"github.com/roach88/simkernel/internal/simtime"
)

// origin is the index of the point before any recorded point.
const origin = -1

type pointKind uint8

const (
	pointAdvancing pointKind = iota
	pointWaiting
	pointJoining
)

// point is one entry of the timeline arena. Which fields are meaningful
// depends on kind:
//
//	advancing: previous, query, event
//	waiting:   previous, delta
//	joining:   base, left, right
type point struct {
	kind     pointKind
	previous int
	query    int
	event    int
	delta    simtime.Duration
	base     int
	left     int
	right    int
}

// predecessor returns the index the backward walk continues from. A join
// continues from its base; the branches are evaluated separately.
func (p point) predecessor() int {
	if p.kind == pointJoining {
		return p.base
	}
	return p.previous
}

// Timeline owns the point arena, the per-query event tables and the
// per-query model caches for one simulation run.
type Timeline struct {
	schema *Schema
	points []point
	tables [][]any
	caches []map[int]any
}

// New creates an empty timeline over a built schema.
func New(schema *Schema) *Timeline {
	if schema == nil {
		panic("timeline: nil schema")
	}
	if !schema.built {
		panic("timeline: schema is not built")
	}
	return &Timeline{schema: schema}
}

// Schema returns the schema the timeline was created with.
func (tl *Timeline) Schema() *Schema { return tl.schema }

// Origin returns the history at the start of the timeline.
func (tl *Timeline) Origin() History {
	return History{tl: tl, index: origin}
}

// Len returns the number of points recorded so far.
func (tl *Timeline) Len() int { return len(tl.points) }

// EventCount returns how many events have been recorded for q.
func (tl *Timeline) EventCount(q Querier) int {
	if q.Index() >= len(tl.tables) {
		return 0
	}
	return len(tl.tables[q.Index()])
}

// ClearCache drops every memoized model for q. Results of later evaluations
// are unaffected.
func (tl *Timeline) ClearCache(q Querier) {
	if q.Index() < len(tl.caches) {
		tl.caches[q.Index()] = nil
	}
}

// ClearAllCaches drops every memoized model of every query.
func (tl *Timeline) ClearAllCaches() {
	for i := range tl.caches {
		tl.caches[i] = nil
	}
}

// CacheSize returns the number of memoized models held for q.
func (tl *Timeline) CacheSize(q Querier) int {
	if q.Index() >= len(tl.caches) {
		return 0
	}
	return len(tl.caches[q.Index()])
}

func (tl *Timeline) cache(query int) map[int]any {
	for len(tl.caches) <= query {
		tl.caches = append(tl.caches, nil)
	}
	if tl.caches[query] == nil {
		tl.caches[query] = make(map[int]any)
	}
	return tl.caches[query]
}

func (tl *Timeline) record(ev Event) (query, index int) {
	for len(tl.tables) <= ev.query {
		tl.tables = append(tl.tables, nil)
	}
	tl.tables[ev.query] = append(tl.tables[ev.query], ev.value)
	return ev.query, len(tl.tables[ev.query]) - 1
}

func (tl *Timeline) event(query, index int) any {
	return tl.tables[query][index]
}

func (tl *Timeline) append(p point) int {
	tl.points = append(tl.points, p)
	return len(tl.points) - 1
}

// History is an immutable handle to a point of a timeline.
//
// The zero History is not usable; obtain one from Timeline.Origin.
type History struct {
	tl       *Timeline
	index    int
	forkBase *History
}

func (h History) timeline() *Timeline {
	if h.tl == nil {
		panic("timeline: use of zero History")
	}
	return h.tl
}

// Timeline returns the timeline h points into.
func (h History) Timeline() *Timeline { return h.tl }

// Index returns the point index, or -1 at the origin.
func (h History) Index() int { return h.index }

// IsOrigin reports whether h is at the start of its timeline.
func (h History) IsOrigin() bool { return h.index == origin }

// ForkBase returns the base h was forked from, if any.
func (h History) ForkBase() (History, bool) {
	if h.forkBase == nil {
		return History{}, false
	}
	return *h.forkBase, true
}

// Emit records ev after h.
func (h History) Emit(ev Event) History {
	tl := h.timeline()
	if ev.schema == nil {
		panic("timeline: emit of zero Event")
	}
	if !tl.schema.includes(ev.schema) {
		panic(fmt.Sprintf("timeline: event for query %q belongs to an unrelated schema", ev.name))
	}
	query, index := tl.record(ev)
	next := tl.append(point{kind: pointAdvancing, previous: h.index, query: query, event: index})
	return History{tl: tl, index: next, forkBase: h.forkBase}
}

// Wait records d of idle simulated time after h. A zero wait returns h.
//
// Wait panics when d is negative or when h is a branch that has not been
// joined back: simulated time may only advance on a history with no
// outstanding forks.
func (h History) Wait(d simtime.Duration) History {
	tl := h.timeline()
	if d < 0 {
		panic(fmt.Sprintf("timeline: wait of negative duration %s", d))
	}
	if h.forkBase != nil {
		panic("timeline: wait on a history with an unmerged fork")
	}
	if d == 0 {
		return h
	}
	next := tl.append(point{kind: pointWaiting, previous: h.index, delta: d})
	return History{tl: tl, index: next}
}

// Fork returns a history at the same point whose fork base is h. Two forks
// of the same history may diverge independently and later be joined.
func (h History) Fork() History {
	h.timeline()
	base := h
	return History{tl: h.tl, index: h.index, forkBase: &base}
}

// Join merges two sibling branches forked from the same base. The result
// continues on the base's own fork base.
//
// Join panics unless both histories were forked from the same base. When
// one side never advanced past the base the other side's point is reused
// and no joining point is recorded.
func (h History) Join(other History) History {
	tl := h.timeline()
	if other.tl != tl {
		panic("timeline: join across timelines")
	}
	if !sameBase(h.forkBase, other.forkBase) {
		panic("timeline: join of histories with different fork bases")
	}
	base := h.forkBase
	if other.index == base.index {
		return History{tl: tl, index: h.index, forkBase: base.forkBase}
	}
	if h.index == base.index {
		return History{tl: tl, index: other.index, forkBase: base.forkBase}
	}
	next := tl.append(point{kind: pointJoining, base: base.index, left: h.index, right: other.index})
	return History{tl: tl, index: next, forkBase: base.forkBase}
}

// Branching runs left and right on two forks of h and joins the results.
func (h History) Branching(left, right func(History) History) History {
	return left(h.Fork()).Join(right(h.Fork()))
}

// sameBase reports whether two fork bases denote the same point. Bases are
// compared structurally so that separate Fork calls on equal histories are
// joinable.
func sameBase(a, b *History) bool {
	if a == nil || b == nil {
		return false
	}
	for a != nil && b != nil {
		if a.tl != b.tl || a.index != b.index {
			return false
		}
		a, b = a.forkBase, b.forkBase
	}
	return a == nil && b == nil
}
