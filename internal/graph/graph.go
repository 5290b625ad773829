package graph

import "fmt"

// Kind identifies the shape of a graph node.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindAtom
	KindSequential
	KindConcurrent
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindAtom:
		return "atom"
	case KindSequential:
		return "sequential"
	case KindConcurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Graph is an immutable series-parallel composition of events of type E.
//
// The interface is sealed: only this package provides implementations.
// Callers inspect a node through Kind, Atom and Children, or reduce it with
// Evaluate.
type Graph[E any] interface {
	// Kind reports which of the four node shapes this is.
	Kind() Kind

	// Atom returns the event held by an atom node. It panics for other kinds.
	Atom() E

	// Children returns the operands of a sequential (prefix, suffix) or
	// concurrent (left, right) node. It panics for other kinds.
	Children() (Graph[E], Graph[E])

	// fold reduces the graph with an erased algebra. All evaluation goes
	// through fold so that lazy views can compose their transformation into
	// the atom interpretation.
	fold(alg Algebra[any], atom func(E) any) any
}

type emptyNode[E any] struct{}

func (emptyNode[E]) Kind() Kind { return KindEmpty }

func (emptyNode[E]) Atom() E {
	panic("graph: Atom called on empty graph")
}

func (emptyNode[E]) Children() (Graph[E], Graph[E]) {
	panic("graph: Children called on empty graph")
}

func (emptyNode[E]) fold(alg Algebra[any], _ func(E) any) any {
	return alg.Empty()
}

type atomNode[E any] struct {
	event E
}

func (atomNode[E]) Kind() Kind { return KindAtom }

func (n atomNode[E]) Atom() E { return n.event }

func (atomNode[E]) Children() (Graph[E], Graph[E]) {
	panic("graph: Children called on atom")
}

func (n atomNode[E]) fold(_ Algebra[any], atom func(E) any) any {
	return atom(n.event)
}

type sequentialNode[E any] struct {
	prefix, suffix Graph[E]
}

func (sequentialNode[E]) Kind() Kind { return KindSequential }

func (sequentialNode[E]) Atom() E {
	panic("graph: Atom called on sequential node")
}

func (n sequentialNode[E]) Children() (Graph[E], Graph[E]) {
	return n.prefix, n.suffix
}

func (n sequentialNode[E]) fold(alg Algebra[any], atom func(E) any) any {
	return alg.Sequentially(n.prefix.fold(alg, atom), n.suffix.fold(alg, atom))
}

type concurrentNode[E any] struct {
	left, right Graph[E]
}

func (concurrentNode[E]) Kind() Kind { return KindConcurrent }

func (concurrentNode[E]) Atom() E {
	panic("graph: Atom called on concurrent node")
}

func (n concurrentNode[E]) Children() (Graph[E], Graph[E]) {
	return n.left, n.right
}

func (n concurrentNode[E]) fold(alg Algebra[any], atom func(E) any) any {
	return alg.Concurrently(n.left.fold(alg, atom), n.right.fold(alg, atom))
}

// Empty returns the graph with no events.
func Empty[E any]() Graph[E] {
	return emptyNode[E]{}
}

// Atom returns a graph holding the single event e.
func Atom[E any](e E) Graph[E] {
	return atomNode[E]{event: e}
}

// Sequentially composes prefix before suffix. Empty operands are dropped.
func Sequentially[E any](prefix, suffix Graph[E]) Graph[E] {
	if prefix.Kind() == KindEmpty {
		return suffix
	}
	if suffix.Kind() == KindEmpty {
		return prefix
	}
	return sequentialNode[E]{prefix: prefix, suffix: suffix}
}

// Concurrently composes left alongside right. Empty operands are dropped.
func Concurrently[E any](left, right Graph[E]) Graph[E] {
	if left.Kind() == KindEmpty {
		return right
	}
	if right.Kind() == KindEmpty {
		return left
	}
	return concurrentNode[E]{left: left, right: right}
}

// Sequence folds graphs left to right with Sequentially.
func Sequence[E any](graphs ...Graph[E]) Graph[E] {
	acc := Empty[E]()
	for _, g := range graphs {
		acc = Sequentially(acc, g)
	}
	return acc
}

// Parallel folds graphs left to right with Concurrently.
func Parallel[E any](graphs ...Graph[E]) Graph[E] {
	acc := Empty[E]()
	for _, g := range graphs {
		acc = Concurrently(acc, g)
	}
	return acc
}

// Atoms builds a sequential chain from a list of events.
func Atoms[E any](events ...E) Graph[E] {
	acc := Empty[E]()
	for _, e := range events {
		acc = Sequentially(acc, Atom(e))
	}
	return acc
}
