package graph

// Algebra interprets the three graph combinators in a target domain F.
//
// Implementations are expected to honor the graph laws: Sequentially and
// Concurrently associative, Empty an identity for both. Concurrently should
// be commutative when the domain has no notion of ordering between
// simultaneous effects.
type Algebra[F any] interface {
	Empty() F
	Sequentially(prefix, suffix F) F
	Concurrently(left, right F) F
}

// Funcs adapts three functions into an Algebra.
type Funcs[F any] struct {
	EmptyFunc        func() F
	SequentiallyFunc func(prefix, suffix F) F
	ConcurrentlyFunc func(left, right F) F
}

func (a Funcs[F]) Empty() F                        { return a.EmptyFunc() }
func (a Funcs[F]) Sequentially(prefix, suffix F) F { return a.SequentiallyFunc(prefix, suffix) }
func (a Funcs[F]) Concurrently(left, right F) F    { return a.ConcurrentlyFunc(left, right) }

// erased boxes a typed algebra so that graphs can fold without knowing F.
type erased[F any] struct {
	alg Algebra[F]
}

func (e erased[F]) Empty() any { return e.alg.Empty() }

func (e erased[F]) Sequentially(prefix, suffix any) any {
	return e.alg.Sequentially(prefix.(F), suffix.(F))
}

func (e erased[F]) Concurrently(left, right any) any {
	return e.alg.Concurrently(left.(F), right.(F))
}

// Evaluate reduces g by structural recursion: atoms through atom, inner
// nodes through alg.
func Evaluate[E, F any](g Graph[E], alg Algebra[F], atom func(E) F) F {
	out := g.fold(erased[F]{alg: alg}, func(e E) any { return atom(e) })
	return out.(F)
}

// mapped is a lazy view of inner with every atom passed through f.
type mapped[E, X any] struct {
	inner Graph[E]
	f     func(E) X
}

// Map returns a graph that evaluates like inner with f applied to each atom.
// The inner tree is not copied.
func Map[E, X any](inner Graph[E], f func(E) X) Graph[X] {
	return mapped[E, X]{inner: inner, f: f}
}

func (m mapped[E, X]) Kind() Kind { return m.inner.Kind() }

func (m mapped[E, X]) Atom() X { return m.f(m.inner.Atom()) }

func (m mapped[E, X]) Children() (Graph[X], Graph[X]) {
	a, b := m.inner.Children()
	return Map(a, m.f), Map(b, m.f)
}

func (m mapped[E, X]) fold(alg Algebra[any], atom func(X) any) any {
	return m.inner.fold(alg, func(e E) any { return atom(m.f(e)) })
}

// substituted is a lazy view of inner with every atom replaced by a graph.
type substituted[E, X any] struct {
	inner Graph[E]
	f     func(E) Graph[X]
}

// Substitute returns a graph that evaluates like inner with each atom
// replaced by the graph f returns for it. The replacement graphs are produced
// on demand during evaluation.
func Substitute[E, X any](inner Graph[E], f func(E) Graph[X]) Graph[X] {
	return substituted[E, X]{inner: inner, f: f}
}

func (s substituted[E, X]) Kind() Kind {
	if s.inner.Kind() == KindAtom {
		return s.f(s.inner.Atom()).Kind()
	}
	return s.inner.Kind()
}

func (s substituted[E, X]) Atom() X {
	if s.inner.Kind() != KindAtom {
		panic("graph: Atom called on non-atom substitution")
	}
	return s.f(s.inner.Atom()).Atom()
}

func (s substituted[E, X]) Children() (Graph[X], Graph[X]) {
	if s.inner.Kind() == KindAtom {
		return s.f(s.inner.Atom()).Children()
	}
	a, b := s.inner.Children()
	return Substitute(a, s.f), Substitute(b, s.f)
}

func (s substituted[E, X]) fold(alg Algebra[any], atom func(X) any) any {
	return s.inner.fold(alg, func(e E) any { return s.f(e).fold(alg, atom) })
}

// Identity is the algebra that rebuilds graphs through the normalizing
// constructors. Evaluating any graph under Identity with Atom as the atom
// interpretation yields a materialized copy.
type Identity[E any] struct{}

func (Identity[E]) Empty() Graph[E] { return Empty[E]() }

func (Identity[E]) Sequentially(prefix, suffix Graph[E]) Graph[E] {
	return Sequentially(prefix, suffix)
}

func (Identity[E]) Concurrently(left, right Graph[E]) Graph[E] {
	return Concurrently(left, right)
}

// Materialize forces a lazy view into a plain tree.
func Materialize[E any](g Graph[E]) Graph[E] {
	return Evaluate(g, Identity[E]{}, Atom[E])
}

// Filter keeps only the atoms for which keep returns true.
func Filter[E any](g Graph[E], keep func(E) bool) Graph[E] {
	return Evaluate(g, Identity[E]{}, func(e E) Graph[E] {
		if keep(e) {
			return Atom(e)
		}
		return Empty[E]()
	})
}

// Count returns the number of atoms in g.
func Count[E any](g Graph[E]) int {
	return Evaluate[E, int](g, Funcs[int]{
		EmptyFunc:        func() int { return 0 },
		SequentiallyFunc: func(a, b int) int { return a + b },
		ConcurrentlyFunc: func(a, b int) int { return a + b },
	}, func(E) int { return 1 })
}
