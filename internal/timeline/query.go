package timeline

import (
	"fmt"

	"github.com/roach88/simkernel/internal/graph"
	"github.com/roach88/simkernel/internal/simtime"
)

// Projection turns events into effects and combines effects with the three
// event graph operators.
type Projection[E, F any] interface {
	graph.Algebra[F]
	Atom(event E) F
}

// Applicator defines how a query's model starts, advances through idle time
// and absorbs effects.
//
// Duplicate is called once per branch on the model at the fork base, and
// nowhere else, so Step and Apply may update a reference-typed model in
// place. Models handed out by Query.GetAt stay owned by the cache: a later
// GetAt on a history that extends one may update it, so callers copy what
// they keep.
type Applicator[F, M any] interface {
	Initial() M
	Duplicate(model M) M
	Step(model M, elapsed simtime.Duration) M
	Apply(model M, effect F) M
}

// Querier is the type-erased view of a Query used by schedulers and
// conditions that handle queries of many types.
type Querier interface {
	Index() int
	Name() string
	ModelAt(h History) any
}

// Event is an event bound to the query whose table records it.
type Event struct {
	schema *Schema
	query  int
	name   string
	value  any
}

// Query returns the index of the query the event belongs to.
func (e Event) Query() int { return e.query }

// Topic returns the name of the query the event belongs to.
func (e Event) Topic() string { return e.name }

// Value returns the raw event value.
func (e Event) Value() any { return e.value }

func (e Event) String() string {
	return fmt.Sprintf("%s:%v", e.name, e.value)
}

// Query tracks one cell: its event table lives on each Timeline, and its
// models are memoized per timeline index.
type Query[E, F, M any] struct {
	schema     *Schema
	index      int
	name       string
	projection Projection[E, F]
	applicator Applicator[F, M]
}

// Index returns the query's position in its schema.
func (q *Query[E, F, M]) Index() int { return q.index }

// Name returns the registered name.
func (q *Query[E, F, M]) Name() string { return q.name }

// Event binds e to q so it can be emitted on a history.
func (q *Query[E, F, M]) Event(e E) Event {
	return Event{schema: q.schema, query: q.index, name: q.name, value: e}
}

// Decode returns the typed value of ev if it belongs to q.
func (q *Query[E, F, M]) Decode(ev Event) (E, bool) {
	var zero E
	if ev.schema != q.schema || ev.query != q.index {
		return zero, false
	}
	v, ok := ev.value.(E)
	return v, ok
}

// ModelAt implements Querier.
func (q *Query[E, F, M]) ModelAt(h History) any {
	return q.GetAt(h)
}

// GetAt returns the model of q at h.
//
// GetAt panics if h belongs to a timeline whose schema does not contain q.
func (q *Query[E, F, M]) GetAt(h History) M {
	tl := h.timeline()
	if !tl.schema.includes(q.schema) {
		panic(fmt.Sprintf("timeline: query %q evaluated on a timeline of an unrelated schema", q.name))
	}
	if h.index == origin {
		return q.applicator.Initial()
	}

	cache := tl.cache(q.index)
	if m, ok := cache[h.index]; ok {
		return m.(M)
	}

	var (
		model M
		chain []int
	)
	for idx := h.index; ; idx = tl.points[idx].predecessor() {
		if idx == origin {
			model = q.applicator.Initial()
			break
		}
		if h.forkBase != nil && idx == h.forkBase.index {
			model = q.applicator.Duplicate(q.GetAt(*h.forkBase))
			break
		}
		if m, ok := cache[idx]; ok {
			delete(cache, idx)
			model = m.(M)
			break
		}
		chain = append(chain, idx)
	}

	model = q.replay(tl, cache, model, chain)
	cache[h.index] = model
	return model
}

// replay applies the points of chain, given newest first, to model.
func (q *Query[E, F, M]) replay(tl *Timeline, cache map[int]any, model M, chain []int) M {
	var (
		effect  F
		pending bool
	)
	absorb := func(f F) {
		if pending {
			effect = q.projection.Sequentially(effect, f)
		} else {
			effect = f
			pending = true
		}
	}

	for i := len(chain) - 1; i >= 0; i-- {
		p := tl.points[chain[i]]
		switch p.kind {
		case pointAdvancing:
			if p.query == q.index {
				absorb(q.projection.Atom(tl.event(p.query, p.event).(E)))
			}
		case pointWaiting:
			if pending {
				model = q.applicator.Apply(model, effect)
				pending = false
			}
			model = q.applicator.Step(model, p.delta)
		case pointJoining:
			left, lok := q.effectBetween(tl, p.base, p.left)
			right, rok := q.effectBetween(tl, p.base, p.right)
			if lok || rok {
				absorb(q.projection.Concurrently(left, right))
			}
			// The branch tips are no longer live.
			delete(cache, p.left)
			delete(cache, p.right)
		default:
			panic(fmt.Sprintf("timeline: unknown point kind %d", p.kind))
		}
	}
	if pending {
		model = q.applicator.Apply(model, effect)
	}
	return model
}

// effectBetween accumulates q's effect on the path from base (exclusive) to
// tip (inclusive). The boolean is false when the path holds no event of q.
func (q *Query[E, F, M]) effectBetween(tl *Timeline, base, tip int) (F, bool) {
	var chain []int
	for idx := tip; idx != base; idx = tl.points[idx].predecessor() {
		if idx == origin {
			panic("timeline: branch does not descend from its join base")
		}
		chain = append(chain, idx)
	}

	effect := q.projection.Empty()
	touched := false
	for i := len(chain) - 1; i >= 0; i-- {
		p := tl.points[chain[i]]
		switch p.kind {
		case pointAdvancing:
			if p.query == q.index {
				effect = q.projection.Sequentially(effect, q.projection.Atom(tl.event(p.query, p.event).(E)))
				touched = true
			}
		case pointWaiting:
			panic("timeline: idle time recorded inside an unmerged branch")
		case pointJoining:
			left, lok := q.effectBetween(tl, p.base, p.left)
			right, rok := q.effectBetween(tl, p.base, p.right)
			if lok || rok {
				effect = q.projection.Sequentially(effect, q.projection.Concurrently(left, right))
				touched = true
			}
		default:
			panic(fmt.Sprintf("timeline: unknown point kind %d", p.kind))
		}
	}
	return effect, touched
}
