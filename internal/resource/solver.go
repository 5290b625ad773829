package resource

import (
	"fmt"
	"math"

	"github.com/roach88/simkernel/internal/simtime"
)

// Comparison relates a real value to a threshold.
type Comparison uint8

const (
	Greater Comparison = iota
	GreaterOrEqual
	Less
	LessOrEqual
)

// Holds reports whether v compares to threshold as c requires.
func (c Comparison) Holds(v, threshold float64) bool {
	switch c {
	case Greater:
		return v > threshold
	case GreaterOrEqual:
		return v >= threshold
	case Less:
		return v < threshold
	case LessOrEqual:
		return v <= threshold
	default:
		panic(fmt.Sprintf("resource: unknown comparison %d", c))
	}
}

// Negate returns the comparison that holds exactly when c does not.
func (c Comparison) Negate() Comparison {
	switch c {
	case Greater:
		return LessOrEqual
	case GreaterOrEqual:
		return Less
	case Less:
		return GreaterOrEqual
	default:
		return Greater
	}
}

func (c Comparison) String() string {
	switch c {
	case Greater:
		return ">"
	case GreaterOrEqual:
		return ">="
	case Less:
		return "<"
	case LessOrEqual:
		return "<="
	default:
		return fmt.Sprintf("Comparison(%d)", c)
	}
}

// FirstSatisfied returns the earliest offset in [from, until] at which
// d compares to threshold as c requires, to microsecond resolution.
//
// Linear dynamics are solved in closed form. Higher-degree polynomials are
// scanned in subdivisions and the first crossing is refined by bisection, so
// an excursion shorter than one subdivision can be missed.
func FirstSatisfied(d RealDynamics, c Comparison, threshold float64, from, until simtime.Duration) (simtime.Duration, bool) {
	if until < from {
		return 0, false
	}
	if c.Holds(d.ValueAt(from), threshold) {
		return from, true
	}
	switch d := d.(type) {
	case Linear:
		return firstLinear(d, c, threshold, from, until)
	default:
		p := d.Polynomial()
		if l, ok := p.Linear(); ok {
			return firstLinear(l, c, threshold, from, until)
		}
		return firstBySubdivision(p, c, threshold, from, until)
	}
}

func firstLinear(l Linear, c Comparison, threshold float64, from, until simtime.Duration) (simtime.Duration, bool) {
	if l.Rate == 0 {
		return 0, false
	}
	rising := l.Rate > 0
	if rising != (c == Greater || c == GreaterOrEqual) {
		// Moving away from the threshold and not satisfied at from.
		return 0, false
	}
	holds := func(t simtime.Duration) bool { return c.Holds(l.ValueAt(t), threshold) }

	crossing := (threshold - l.Initial) / l.Rate * float64(simtime.Second)
	t := simtime.Duration(math.Floor(math.Min(math.Max(crossing, float64(from)), float64(until))))

	// from is unsatisfied, and the satisfied instants form a suffix.
	lo, hi := from, until
	if holds(t) {
		if t == from || !holds(t-1) {
			return t, true
		}
		hi = t
	} else {
		// Rounding usually lands at most a microsecond early.
		for end := min(t+crossingSteps, until); t < end; {
			t++
			if holds(t) {
				return t, true
			}
		}
		if !holds(until) {
			return 0, false
		}
		lo = t
	}
	// Values too coarse for the rate put the crossing further off.
	return bisect(holds, lo, hi), true
}

// crossingSteps bounds the forward scan past a computed linear crossing.
const crossingSteps = 4

// subdivisions is how many equal slices firstBySubdivision scans.
const subdivisions = 256

func firstBySubdivision(p Polynomial, c Comparison, threshold float64, from, until simtime.Duration) (simtime.Duration, bool) {
	holds := func(t simtime.Duration) bool { return c.Holds(p.ValueAt(t), threshold) }
	step := max((until-from)/subdivisions, simtime.Microsecond)
	lo := from
	for lo < until {
		hi := min(lo+step, until)
		if holds(hi) {
			return bisect(holds, lo, hi), true
		}
		lo = hi
	}
	return 0, false
}

// bisect returns the first satisfied instant in (lo, hi], given holds is
// false at lo and true at hi.
func bisect(holds func(simtime.Duration) bool, lo, hi simtime.Duration) simtime.Duration {
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if holds(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

// Segment is a piece of an approximated profile: Dynamics holds from Start
// for Length.
type Segment struct {
	Start    simtime.Duration
	Length   simtime.Duration
	Dynamics Linear
}

// Approximate cuts d over [0, length] into linear segments. Linear dynamics
// yield one exact segment; other dynamics are bisected until each chord
// stays within tolerance of d at its midpoint and quarter points.
func Approximate(d RealDynamics, length simtime.Duration, tolerance float64) []Segment {
	if length <= 0 {
		return nil
	}
	if l, ok := d.Polynomial().Linear(); ok {
		return []Segment{{Start: 0, Length: length, Dynamics: l}}
	}
	var out []Segment
	approximate(d, 0, length, tolerance, &out)
	return out
}

func approximate(d RealDynamics, start, end simtime.Duration, tolerance float64, out *[]Segment) {
	v0, v1 := d.ValueAt(start), d.ValueAt(end)
	length := end - start
	chord := Linear{Initial: v0, Rate: (v1 - v0) / length.Seconds()}

	within := true
	for _, frac := range []int64{1, 2, 3} {
		t := start + simtime.Duration(int64(length)*frac/4)
		if math.Abs(chord.ValueAt(t-start)-d.ValueAt(t)) > tolerance {
			within = false
			break
		}
	}
	if within || length <= 2*simtime.Microsecond {
		*out = append(*out, Segment{Start: start, Length: length, Dynamics: chord})
		return
	}
	mid := start + length/2
	approximate(d, start, mid, tolerance, out)
	approximate(d, mid, end, tolerance, out)
}
