package resource

import (
	"fmt"
	"strings"

	"github.com/roach88/simkernel/internal/ir"
	"github.com/roach88/simkernel/internal/simtime"
	"github.com/roach88/simkernel/internal/task"
)

// Condition is a predicate over resources that tasks can await. It
// implements task.Condition.
//
// Conditions are closed under And, Or and Not; Not is pushed down to the
// leaves, so every search runs on threshold or equality tests.
type Condition interface {
	task.Condition
	fmt.Stringer

	// firstFrom returns the earliest offset in [from, until] at which the
	// condition holds.
	firstFrom(r task.Reader, from, until simtime.Duration) (simtime.Duration, bool)
	negate() Condition
}

// maxRefinements bounds the alternating search of And.
const maxRefinements = 64

type threshold struct {
	res RealResource
	cmp Comparison
	v   float64
}

// Above holds while res is strictly greater than v.
func Above(res RealResource, v float64) Condition { return threshold{res: res, cmp: Greater, v: v} }

// AtLeast holds while res is greater than or equal to v.
func AtLeast(res RealResource, v float64) Condition {
	return threshold{res: res, cmp: GreaterOrEqual, v: v}
}

// Below holds while res is strictly less than v.
func Below(res RealResource, v float64) Condition { return threshold{res: res, cmp: Less, v: v} }

// AtMost holds while res is less than or equal to v.
func AtMost(res RealResource, v float64) Condition {
	return threshold{res: res, cmp: LessOrEqual, v: v}
}

func (c threshold) NextSatisfied(r task.Reader, horizon simtime.Duration) (simtime.Duration, bool) {
	return c.firstFrom(r, 0, horizon)
}

func (c threshold) firstFrom(r task.Reader, from, until simtime.Duration) (simtime.Duration, bool) {
	return FirstSatisfied(c.res.Real(r), c.cmp, c.v, from, until)
}

func (c threshold) negate() Condition {
	return threshold{res: c.res, cmp: c.cmp.Negate(), v: c.v}
}

func (c threshold) String() string {
	return fmt.Sprintf("%s %s %g", c.res.Name(), c.cmp, c.v)
}

type equality struct {
	res     DiscreteResource
	value   ir.Value
	negated bool
}

// Equals holds while res has value v. Discrete values change only through
// events, so it either holds now or not at all until the next event.
func Equals(res DiscreteResource, v ir.Value) Condition {
	return equality{res: res, value: v}
}

func (c equality) NextSatisfied(r task.Reader, horizon simtime.Duration) (simtime.Duration, bool) {
	return c.firstFrom(r, 0, horizon)
}

func (c equality) firstFrom(r task.Reader, from, until simtime.Duration) (simtime.Duration, bool) {
	if until < from {
		return 0, false
	}
	if ir.Equal(c.res.Discrete(r).Value, c.value) != c.negated {
		return from, true
	}
	return 0, false
}

func (c equality) negate() Condition {
	c.negated = !c.negated
	return c
}

func (c equality) String() string {
	op := "=="
	if c.negated {
		op = "!="
	}
	return fmt.Sprintf("%s %s %s", c.res.Name(), op, ir.Format(c.value))
}

type conjunction []Condition

// And holds while every condition holds. With no conditions it always
// holds.
func And(conds ...Condition) Condition { return conjunction(conds) }

func (c conjunction) NextSatisfied(r task.Reader, horizon simtime.Duration) (simtime.Duration, bool) {
	return c.firstFrom(r, 0, horizon)
}

// firstFrom advances a candidate instant until every operand agrees on it.
// Each operand can only push the candidate later, so the search converges
// on the first common instant or runs past until.
func (c conjunction) firstFrom(r task.Reader, from, until simtime.Duration) (simtime.Duration, bool) {
	t := from
	for range maxRefinements {
		agreed := true
		for _, cond := range c {
			next, ok := cond.firstFrom(r, t, until)
			if !ok {
				return 0, false
			}
			if next != t {
				t = next
				agreed = false
			}
		}
		if agreed {
			return t, true
		}
	}
	return 0, false
}

func (c conjunction) negate() Condition {
	out := make(disjunction, len(c))
	for i, cond := range c {
		out[i] = cond.negate()
	}
	return out
}

func (c conjunction) String() string { return join(c, " && ") }

type disjunction []Condition

// Or holds while any condition holds. With no conditions it never holds.
func Or(conds ...Condition) Condition { return disjunction(conds) }

func (c disjunction) NextSatisfied(r task.Reader, horizon simtime.Duration) (simtime.Duration, bool) {
	return c.firstFrom(r, 0, horizon)
}

func (c disjunction) firstFrom(r task.Reader, from, until simtime.Duration) (simtime.Duration, bool) {
	best, found := simtime.Duration(0), false
	for _, cond := range c {
		if t, ok := cond.firstFrom(r, from, until); ok && (!found || t < best) {
			best, found = t, true
		}
	}
	return best, found
}

func (c disjunction) negate() Condition {
	out := make(conjunction, len(c))
	for i, cond := range c {
		out[i] = cond.negate()
	}
	return out
}

func (c disjunction) String() string { return join(c, " || ") }

// Not holds while c does not.
func Not(c Condition) Condition { return c.negate() }

func join(conds []Condition, sep string) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = "(" + c.String() + ")"
	}
	return strings.Join(parts, sep)
}
