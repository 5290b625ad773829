package graph

import (
	"fmt"
	"strings"
)

// rendered is a partially displayed graph together with the kind of its
// outermost operator, used to decide where parentheses are needed.
type rendered struct {
	text string
	kind Kind
}

type displayAlgebra struct{}

func (displayAlgebra) Empty() rendered { return rendered{kind: KindEmpty} }

func (displayAlgebra) Sequentially(prefix, suffix rendered) rendered {
	return join(prefix, suffix, KindSequential, "; ")
}

func (displayAlgebra) Concurrently(left, right rendered) rendered {
	return join(left, right, KindConcurrent, " | ")
}

func join(a, b rendered, kind Kind, sep string) rendered {
	if a.kind == KindEmpty {
		return b
	}
	if b.kind == KindEmpty {
		return a
	}
	var sb strings.Builder
	sb.WriteString(wrap(a, kind))
	sb.WriteString(sep)
	sb.WriteString(wrap(b, kind))
	return rendered{text: sb.String(), kind: kind}
}

// wrap parenthesizes an operand whose operator differs from its parent's.
// Operands of the same operator need none because both operators are
// associative.
func wrap(r rendered, parent Kind) string {
	if r.kind == KindAtom || r.kind == parent {
		return r.text
	}
	return "(" + r.text + ")"
}

// Display renders g using show for each atom.
//
// The empty graph renders as the empty string, sequential composition as
// "a; b" and concurrent composition as "a | b". Nested operands of a
// different operator are parenthesized.
func Display[E any](g Graph[E], show func(E) string) string {
	return Evaluate[E, rendered](g, displayAlgebra{}, func(e E) rendered {
		return rendered{text: show(e), kind: KindAtom}
	}).text
}

// String renders g with fmt's default formatting of each atom.
func String[E any](g Graph[E]) string {
	return Display(g, func(e E) string { return fmt.Sprint(e) })
}
