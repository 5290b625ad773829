package timeline

import (
	"maps"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simkernel/internal/graph"
	"github.com/roach88/simkernel/internal/simtime"
)

type sumProjection struct{}

func (sumProjection) Empty() int                { return 0 }
func (sumProjection) Sequentially(a, b int) int { return a + b }
func (sumProjection) Concurrently(a, b int) int { return a + b }
func (sumProjection) Atom(e int) int            { return e }

type sumApplicator struct{}

func (sumApplicator) Initial() int                       { return 0 }
func (sumApplicator) Duplicate(m int) int                { return m }
func (sumApplicator) Step(m int, _ simtime.Duration) int { return m }
func (sumApplicator) Apply(m, f int) int                 { return m + f }

// elapsedApplicator counts idle time and ignores effects.
type elapsedApplicator struct{}

func (elapsedApplicator) Initial() simtime.Duration { return 0 }
func (elapsedApplicator) Duplicate(m simtime.Duration) simtime.Duration {
	return m
}
func (elapsedApplicator) Step(m, d simtime.Duration) simtime.Duration { return m + d }
func (elapsedApplicator) Apply(m simtime.Duration, _ int) simtime.Duration {
	return m
}

// logApplicator keeps the whole effect graph observed so far.
type logApplicator struct{}

func (logApplicator) Initial() graph.Graph[int]                     { return graph.Empty[int]() }
func (logApplicator) Duplicate(m graph.Graph[int]) graph.Graph[int] { return m }
func (logApplicator) Step(m graph.Graph[int], _ simtime.Duration) graph.Graph[int] {
	return m
}
func (logApplicator) Apply(m, f graph.Graph[int]) graph.Graph[int] {
	return graph.Sequentially(m, f)
}

type logProjection struct{ graph.Identity[int] }

func (logProjection) Atom(e int) graph.Graph[int] { return graph.Atom(e) }

type fixture struct {
	tl      *Timeline
	sum     *Query[int, int, int]
	elapsed *Query[int, int, simtime.Duration]
	log     *Query[int, graph.Graph[int], graph.Graph[int]]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := NewBuilder()
	f := &fixture{
		sum:     Register[int, int, int](b, "sum", sumProjection{}, sumApplicator{}),
		elapsed: Register[int, int, simtime.Duration](b, "elapsed", sumProjection{}, elapsedApplicator{}),
		log:     Register[int, graph.Graph[int], graph.Graph[int]](b, "log", logProjection{}, logApplicator{}),
	}
	f.tl = New(b.Build())
	return f
}

func TestScenario_EmitWaitEmit(t *testing.T) {
	f := newFixture(t)
	q := f.sum

	h0 := f.tl.Origin()
	h1 := h0.Emit(q.Event(5))
	h2 := h1.Wait(10 * simtime.Second)
	h3 := h2.Emit(q.Event(3))

	assert.Equal(t, 0, q.GetAt(h0))
	assert.Equal(t, 5, q.GetAt(h1))
	assert.Equal(t, 5, q.GetAt(h2))
	assert.Equal(t, 8, q.GetAt(h3))
	assert.Equal(t, 10*simtime.Second, f.elapsed.GetAt(h3))
}

func TestScenario_ForkJoinSums(t *testing.T) {
	build := func() (*fixture, History, History, History) {
		f := newFixture(t)
		h := f.tl.Origin().Emit(f.sum.Event(10)).Wait(simtime.Second)
		a := h.Fork()
		b := h.Fork()
		a2 := a.Emit(f.sum.Event(1))
		b2 := b.Emit(f.sum.Event(2))
		return f, a2, b2, a2.Join(b2)
	}

	f, a2, b2, j := build()
	assert.Equal(t, 11, f.sum.GetAt(a2))
	assert.Equal(t, 12, f.sum.GetAt(b2))
	assert.Equal(t, 13, f.sum.GetAt(j))

	f, a2, b2, j = build()
	assert.Equal(t, 13, f.sum.GetAt(j))
	assert.Equal(t, 12, f.sum.GetAt(b2))
	assert.Equal(t, 11, f.sum.GetAt(a2))
}

func TestJoin_ResultHasNoForkBase(t *testing.T) {
	f := newFixture(t)
	a := f.tl.Origin().Fork().Emit(f.sum.Event(1))
	b := f.tl.Origin().Fork().Emit(f.sum.Event(2))
	j := a.Join(b)

	_, forked := j.ForkBase()
	assert.False(t, forked)
	assert.NotPanics(t, func() { j.Wait(simtime.Second) })
}

func TestJoin_Panics(t *testing.T) {
	f := newFixture(t)
	h := f.tl.Origin().Emit(f.sum.Event(1))
	other := h.Emit(f.sum.Event(2))

	assert.Panics(t, func() { h.Join(other) }, "no fork base")
	assert.Panics(t, func() { h.Fork().Join(other) }, "one side without fork base")
	assert.Panics(t, func() { h.Fork().Join(other.Fork()) }, "different fork bases")

	f2 := newFixture(t)
	assert.Panics(t, func() { h.Fork().Join(f2.tl.Origin().Fork()) }, "different timelines")
}

func TestJoin_NestedForksMustMatch(t *testing.T) {
	f := newFixture(t)
	h := f.tl.Origin().Emit(f.sum.Event(1))
	outer := h.Fork()
	inner := outer.Emit(f.sum.Event(2)).Fork()

	assert.Panics(t, func() { inner.Join(h.Fork()) })
	assert.NotPanics(t, func() { inner.Emit(f.sum.Event(3)).Join(inner.Emit(f.sum.Event(4))) })
}

func TestJoin_ShortCircuitsUnadvancedSibling(t *testing.T) {
	f := newFixture(t)
	h := f.tl.Origin().Emit(f.sum.Event(1))
	a := h.Fork().Emit(f.sum.Event(2))
	b := h.Fork()
	before := f.tl.Len()

	j := a.Join(b)
	assert.Equal(t, a.Index(), j.Index())
	assert.Equal(t, before, f.tl.Len())
	assert.Equal(t, 3, f.sum.GetAt(j))

	j2 := b.Join(a)
	assert.Equal(t, a.Index(), j2.Index())

	both := h.Fork().Join(h.Fork())
	assert.Equal(t, h.Index(), both.Index())
}

func TestWait(t *testing.T) {
	f := newFixture(t)
	h := f.tl.Origin().Emit(f.sum.Event(1))

	assert.Equal(t, h.Index(), h.Wait(0).Index())
	assert.Panics(t, func() { h.Wait(-1) })
	assert.Panics(t, func() { h.Fork().Wait(simtime.Second) })
	assert.Panics(t, func() { h.Fork().Emit(f.sum.Event(1)).Wait(simtime.Second) })

	var zero History
	assert.Panics(t, func() { zero.Wait(1) })
}

func TestBranching_EquivalentToExplicitForks(t *testing.T) {
	left := func(q *Query[int, int, int]) func(History) History {
		return func(h History) History { return h.Emit(q.Event(4)).Emit(q.Event(5)) }
	}
	right := func(q *Query[int, int, int]) func(History) History {
		return func(h History) History { return h.Emit(q.Event(7)) }
	}

	f1 := newFixture(t)
	h1 := f1.tl.Origin().Emit(f1.sum.Event(1))
	viaBranching := h1.Branching(left(f1.sum), right(f1.sum))

	f2 := newFixture(t)
	h2 := f2.tl.Origin().Emit(f2.sum.Event(1))
	explicit := left(f2.sum)(h2.Fork()).Join(right(f2.sum)(h2.Fork()))

	assert.Equal(t, f2.sum.GetAt(explicit), f1.sum.GetAt(viaBranching))
	assert.Equal(t, graph.String(f2.log.GetAt(explicit)), graph.String(f1.log.GetAt(viaBranching)))
	assert.Equal(t, f2.tl.Len(), f1.tl.Len())
}

func TestSiblingsAreIsolated(t *testing.T) {
	f := newFixture(t)
	h := f.tl.Origin().Emit(f.log.Event(1))
	a := h.Fork().Emit(f.log.Event(2))
	b := h.Fork().Emit(f.log.Event(3))

	assert.Equal(t, "1; 2", graph.String(f.log.GetAt(a)))
	assert.Equal(t, "1; 3", graph.String(f.log.GetAt(b)))

	a2 := a.Emit(f.log.Event(4))
	assert.Equal(t, "1; 2; 4", graph.String(f.log.GetAt(a2)))
	assert.Equal(t, "1; 3", graph.String(f.log.GetAt(b)))

	j := a2.Join(b)
	assert.Equal(t, "1; ((2; 4) | 3)", graph.String(f.log.GetAt(j)))
}

func TestCache_MovesAlongLiveBranch(t *testing.T) {
	f := newFixture(t)
	q := f.sum
	h := f.tl.Origin()
	for i := 1; i <= 5; i++ {
		h = h.Emit(q.Event(i))
		q.GetAt(h)
		assert.Equal(t, 1, f.tl.CacheSize(q))
	}
	assert.Equal(t, 15, q.GetAt(h))

	a := h.Fork().Emit(q.Event(100))
	b := h.Fork().Emit(q.Event(200))
	assert.Equal(t, 115, q.GetAt(a))
	assert.Equal(t, 215, q.GetAt(b))
	assert.Equal(t, 3, f.tl.CacheSize(q), "base plus one entry per branch")

	j := a.Join(b)
	assert.Equal(t, 315, q.GetAt(j))
	assert.Equal(t, 1, f.tl.CacheSize(q))
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	q := f.sum
	h := f.tl.Origin().Emit(q.Event(2)).Wait(simtime.Second).Emit(q.Event(3))
	assert.Equal(t, 5, q.GetAt(h))
	require.Equal(t, 1, f.tl.CacheSize(q))

	f.tl.ClearCache(q)
	assert.Equal(t, 0, f.tl.CacheSize(q))
	assert.Equal(t, 5, q.GetAt(h))

	f.tl.ClearAllCaches()
	assert.Equal(t, 0, f.tl.CacheSize(q))
	assert.Equal(t, 5, q.GetAt(h))
}

// tallyApplicator updates its map model in place and counts copies.
type tallyApplicator struct{ duplicates int }

func (a *tallyApplicator) Initial() map[string]int { return map[string]int{} }

func (a *tallyApplicator) Duplicate(m map[string]int) map[string]int {
	a.duplicates++
	return maps.Clone(m)
}

func (a *tallyApplicator) Step(m map[string]int, d simtime.Duration) map[string]int {
	m["idle"] += int(d / simtime.Second)
	return m
}

func (a *tallyApplicator) Apply(m map[string]int, f int) map[string]int {
	m["sum"] += f
	return m
}

func TestInPlaceModels_ForkJoin(t *testing.T) {
	b := NewBuilder()
	app := &tallyApplicator{}
	q := Register[int, int, map[string]int](b, "tally", sumProjection{}, app)
	tl := New(b.Build())

	base := tl.Origin().Emit(q.Event(10)).Wait(simtime.Second)
	left := base.Fork().Emit(q.Event(1)).Emit(q.Event(4))
	right := base.Fork().Emit(q.Event(2))
	linear := base.Emit(q.Event(5)).Wait(simtime.Second)
	joined := left.Join(right)

	branchesFirst := func() {
		app.duplicates = 0
		assert.Equal(t, 15, q.GetAt(left)["sum"])
		assert.Equal(t, 12, q.GetAt(right)["sum"])
		assert.Equal(t, 2, app.duplicates, "one copy of the base per branch")
		assert.Equal(t, 10, q.GetAt(base)["sum"], "branches wrote through to the base")

		lin := q.GetAt(linear)
		assert.Equal(t, 15, lin["sum"])
		assert.Equal(t, 2, lin["idle"])

		j := q.GetAt(joined)
		assert.Equal(t, 17, j["sum"])
		assert.Equal(t, 1, j["idle"])
		assert.Equal(t, 2, app.duplicates, "linear walks must not copy")
	}

	branchesFirst()
	tl.ClearCache(q)
	branchesFirst()

	tl.ClearCache(q)
	app.duplicates = 0
	assert.Equal(t, 17, q.GetAt(joined)["sum"])
	assert.Equal(t, 15, q.GetAt(linear)["sum"])
	assert.Equal(t, 0, app.duplicates)
	assert.Equal(t, 15, q.GetAt(left)["sum"])
	assert.Equal(t, 12, q.GetAt(right)["sum"])
	assert.Equal(t, 2, app.duplicates)
}

// observation is a history together with the values its queries must report.
type observation struct {
	h       History
	sum     int
	elapsed simtime.Duration
}

// grow records a random sequence of operations after h, appending every
// intermediate history to obs.
func grow(r *rand.Rand, f *fixture, start observation, depth int, canWait bool, obs *[]observation) observation {
	cur := start
	steps := 1 + r.IntN(6)
	for i := 0; i < steps; i++ {
		switch op := r.IntN(4); {
		case op == 0 && canWait:
			d := simtime.Duration(1 + r.IntN(5))
			cur = observation{h: cur.h.Wait(d), sum: cur.sum, elapsed: cur.elapsed + d}
		case op == 1 && depth > 0:
			base := cur
			left := grow(r, f, observation{h: base.h.Fork(), sum: base.sum, elapsed: base.elapsed}, depth-1, false, obs)
			right := grow(r, f, observation{h: base.h.Fork(), sum: base.sum, elapsed: base.elapsed}, depth-1, false, obs)
			cur = observation{
				h:       left.h.Join(right.h),
				sum:     left.sum + right.sum - base.sum,
				elapsed: base.elapsed,
			}
		default:
			v := r.IntN(20) - 5
			cur = observation{h: cur.h.Emit(f.sum.Event(v)), sum: cur.sum + v, elapsed: cur.elapsed}
		}
		*obs = append(*obs, cur)
	}
	return cur
}

func TestCacheTransparency_RandomPrograms(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		r := rand.New(rand.NewPCG(seed, 99))
		f := newFixture(t)

		var obs []observation
		cur := observation{h: f.tl.Origin()}
		for round := 0; round < 4; round++ {
			cur = grow(r, f, cur, 3, true, &obs)
		}

		for _, o := range obs {
			require.Equal(t, o.sum, f.sum.GetAt(o.h), "seed %d index %d", seed, o.h.Index())
			require.Equal(t, o.elapsed, f.elapsed.GetAt(o.h), "seed %d index %d", seed, o.h.Index())
		}

		f.tl.ClearAllCaches()
		for i := len(obs) - 1; i >= 0; i-- {
			require.Equal(t, obs[i].sum, f.sum.GetAt(obs[i].h), "seed %d reverse", seed)
		}

		for _, i := range r.Perm(len(obs)) {
			if r.IntN(3) == 0 {
				f.tl.ClearCache(f.sum)
			}
			require.Equal(t, obs[i].sum, f.sum.GetAt(obs[i].h), "seed %d shuffled", seed)
		}
	}
}

func TestSchema_RegisterAfterBuildPanics(t *testing.T) {
	b := NewBuilder()
	Register[int, int, int](b, "a", sumProjection{}, sumApplicator{})
	b.Build()
	assert.Panics(t, func() {
		Register[int, int, int](b, "b", sumProjection{}, sumApplicator{})
	})
}

func TestSchema_Extend(t *testing.T) {
	b := NewBuilder()
	base := Register[int, int, int](b, "base", sumProjection{}, sumApplicator{})
	s := b.Build()

	eb := s.Extend()
	extra := Register[int, int, int](eb, "extra", sumProjection{}, sumApplicator{})
	extended := eb.Build()

	assert.Equal(t, 0, base.Index())
	assert.Equal(t, 1, extra.Index())
	assert.Equal(t, []string{"base", "extra"}, extended.Names())
	assert.Equal(t, 1, s.Len())

	tl := New(extended)
	h := tl.Origin().Emit(base.Event(4)).Emit(extra.Event(6))
	assert.Equal(t, 4, base.GetAt(h))
	assert.Equal(t, 6, extra.GetAt(h))

	baseTL := New(s)
	assert.Panics(t, func() { extra.GetAt(baseTL.Origin()) })
	assert.Panics(t, func() { baseTL.Origin().Emit(extra.Event(1)) })
	assert.Panics(t, func() { New(NewBuilder().schema) })
	assert.Panics(t, func() { (&Schema{}).Extend() })
}

func TestQuery_UnrelatedSchemaPanics(t *testing.T) {
	f := newFixture(t)
	g := newFixture(t)
	assert.Panics(t, func() { f.sum.GetAt(g.tl.Origin()) })
	assert.Panics(t, func() { g.tl.Origin().Emit(f.sum.Event(1)) })
}

func TestEvent_Decode(t *testing.T) {
	f := newFixture(t)
	ev := f.sum.Event(7)
	v, ok := f.sum.Decode(ev)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = f.elapsed.Decode(ev)
	assert.False(t, ok)
	assert.Equal(t, "sum:7", ev.String())
	assert.Equal(t, "sum", ev.Topic())
}

func TestDebugTrace(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "(origin)\n", f.tl.Origin().DebugTrace())

	h := f.tl.Origin().Emit(f.sum.Event(1)).Wait(simtime.Second)
	j := h.Branching(
		func(b History) History { return b.Emit(f.sum.Event(2)) },
		func(b History) History { return b.Emit(f.log.Event(3)) },
	)

	want := "#4 join from #1\n" +
		"  left:\n" +
		"    #2 emit sum:2\n" +
		"  right:\n" +
		"    #3 emit log:3\n" +
		"#1 wait 1s\n" +
		"#0 emit sum:1\n"
	assert.Equal(t, want, j.DebugTrace())
}
