// Package graph implements the event graph algebra.
//
// An event graph is an immutable series-parallel expression over atomic
// events:
//
//	Empty                       no events
//	Atom(e)                     a single event
//	Sequentially(prefix, suffix) prefix happens before suffix
//	Concurrently(left, right)    neither observes the other
//
// Sequentially and Concurrently are each associative with Empty as a
// two-sided identity. The constructors enforce the identity law, so a graph
// built through them never contains an Empty operand.
//
// Graphs are interpreted by Evaluate against an Algebra plus an atom
// interpretation. Map and Substitute return lazy views: the transformation is
// composed into the atom interpretation at evaluation time and the wrapped
// tree is never rebuilt.
package graph
